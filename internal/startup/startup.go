// Package startup registers klip to run when the user logs in.
package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// Registrar toggles run-at-login registration.
type Registrar interface {
	Enable() error
	Disable() error
	IsEnabled() (bool, error)
}

const desktopFileName = "klip.desktop"

// Autostart registers through an XDG autostart desktop entry.
type Autostart struct {
	dir  string
	exec string
}

// NewAutostart returns a Registrar writing to $XDG_CONFIG_HOME/autostart that
// launches `<executable> daemon`.
func NewAutostart(executable string) *Autostart {
	return NewAutostartIn(filepath.Join(xdg.ConfigHome, "autostart"), executable)
}

// NewAutostartIn is NewAutostart with an explicit autostart directory.
func NewAutostartIn(dir, executable string) *Autostart {
	return &Autostart{dir: dir, exec: executable}
}

// Path returns the desktop entry location.
func (a *Autostart) Path() string {
	return filepath.Join(a.dir, desktopFileName)
}

// Enable writes the desktop entry.
func (a *Autostart) Enable() error {
	if strings.TrimSpace(a.exec) == "" {
		return errors.New("executable path is required")
	}
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return fmt.Errorf("create autostart dir: %w", err)
	}
	return os.WriteFile(a.Path(), []byte(a.desktopEntry()), 0644)
}

// Disable removes the desktop entry. Removing a missing entry is not an error.
func (a *Autostart) Disable() error {
	if err := os.Remove(a.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// IsEnabled reports whether the desktop entry exists.
func (a *Autostart) IsEnabled() (bool, error) {
	_, err := os.Stat(a.Path())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (a *Autostart) desktopEntry() string {
	return fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=klip
Comment=Clipboard history
Exec=%s daemon
Terminal=false
X-GNOME-Autostart-enabled=true
`, quoteExec(a.exec))
}

// quoteExec quotes an Exec argument using the desktop entry quoting rules.
func quoteExec(s string) string {
	if !strings.ContainsAny(s, " \t\"'\\$`") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(s) + `"`
}

// Reconcile makes the registration match want and reports whether it changed.
func Reconcile(r Registrar, want bool) (bool, error) {
	have, err := r.IsEnabled()
	if err != nil {
		return false, err
	}
	if have == want {
		return false, nil
	}
	if want {
		return true, r.Enable()
	}
	return true, r.Disable()
}

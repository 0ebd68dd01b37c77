// ABOUTME: Builds the $EDITOR command that reveals a manifest selection
// ABOUTME: Editors that understand +line get the selection's first line

package tui

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mariosdrth/npm-explorer/internal/commands"
)

// lineAwareEditors accept a "+N" argument before the file.
var lineAwareEditors = map[string]bool{
	"vi": true, "vim": true, "nvim": true, "nano": true, "emacs": true,
	"emacsclient": true, "micro": true, "kak": true, "hx": true, "joe": true,
}

// EditorCommand returns the command opening sel in the user's editor.
func EditorCommand(sel commands.Selection) *exec.Cmd {
	fields := strings.Fields(getEditor())
	name := fields[0]
	args := append([]string(nil), fields[1:]...)

	switch base := filepath.Base(name); {
	case base == "code" || base == "codium":
		// --goto columns are characters; they match ours for BMP text.
		args = append(args, "--goto", fmt.Sprintf("%s:%d:%d", sel.Path, sel.Start.Line+1, sel.Start.Column+1))
	case lineAwareEditors[base]:
		args = append(args, fmt.Sprintf("+%d", sel.Start.Line+1), sel.Path)
	default:
		args = append(args, sel.Path)
	}
	return exec.Command(name, args...)
}

func getEditor() string {
	if visual := strings.TrimSpace(os.Getenv("VISUAL")); visual != "" {
		return visual
	}
	if editor := strings.TrimSpace(os.Getenv("EDITOR")); editor != "" {
		return editor
	}
	return "vi"
}

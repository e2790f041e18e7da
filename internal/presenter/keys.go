package presenter

// Keybinding constants.
const (
	KeyQuit     = "q"
	KeyCtrlC    = "ctrl+c"
	KeyTab      = "tab"
	KeyShiftTab = "shift+tab"
	KeyPane1    = "1"
	KeyPane2    = "2"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyJ        = "j"
	KeyK        = "k"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView() string {
	return StyleHelp.Render("Tab: cycle focus | 1/2: jump to pane | j/k: scroll | q: quit")
}

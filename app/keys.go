package app

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap holds every key binding of the dashboard.
type KeyMap struct {
	Quit      key.Binding
	Help      key.Binding
	Tree      key.Binding
	Panels    [panelCount]key.Binding
	NextPanel key.Binding
	PrevPanel key.Binding
	Sort      key.Binding
	Reverse   key.Binding
	Up        key.Binding
	Down      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Home      key.Binding
	End       key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q/esc", "quit")),
		Help:      key.NewBinding(key.WithKeys("?", "h"), key.WithHelp("?/h", "toggle help")),
		Tree:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle process tree")),
		NextPanel: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next panel")),
		PrevPanel: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous panel")),
		Sort:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle sort column")),
		Reverse:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reverse sort")),
		Up:        key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "scroll up")),
		Down:      key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "scroll down")),
		PageUp:    key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
		Home:      key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "top")),
		End:       key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "bottom")),
	}
	for i := range km.Panels {
		k := string(rune('1' + i))
		km.Panels[i] = key.NewBinding(key.WithKeys(k), key.WithHelp(k, "toggle "+Panel(i).String()+" panel"))
	}
	return km
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.NextPanel, k.Sort, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		append([]key.Binding{k.NextPanel, k.PrevPanel}, k.Panels[:]...),
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Home, k.End},
		{k.Sort, k.Reverse, k.Tree, k.Help, k.Quit},
	}
}

// normalizeKey lowercases letter runes so bindings match regardless of
// shift or caps lock.
func normalizeKey(msg tea.KeyMsg) tea.KeyMsg {
	if msg.Type != tea.KeyRunes || len(msg.Runes) == 0 {
		return msg
	}
	lower := []rune(strings.ToLower(string(msg.Runes)))
	if len(lower) != len(msg.Runes) {
		lower = make([]rune, len(msg.Runes))
		for i, r := range msg.Runes {
			lower[i] = unicode.ToLower(r)
		}
	}
	msg.Runes = lower
	return msg
}

// HandleKey applies one key press to the App. It returns true when the
// key requests exit. Unknown keys are ignored.
func (a *App) HandleKey(msg tea.KeyMsg) bool {
	msg = normalizeKey(msg)
	k := a.keys
	switch {
	case key.Matches(msg, k.Quit):
		return true
	case key.Matches(msg, k.Help):
		a.showHelp = !a.showHelp
	case key.Matches(msg, k.Tree):
		a.showTree = !a.showTree
	case key.Matches(msg, k.NextPanel):
		a.cyclePanel(1)
	case key.Matches(msg, k.PrevPanel):
		a.cyclePanel(-1)
	case key.Matches(msg, k.Sort):
		a.sortCol = a.sortCol.Next()
	case key.Matches(msg, k.Reverse):
		a.reverse = !a.reverse
	case key.Matches(msg, k.Up):
		a.scrollBy(-1)
	case key.Matches(msg, k.Down):
		a.scrollBy(1)
	case key.Matches(msg, k.PageUp):
		a.scrollBy(-a.pageSize)
	case key.Matches(msg, k.PageDown):
		a.scrollBy(a.pageSize)
	case key.Matches(msg, k.Home):
		a.scroll[a.selected] = 0
	case key.Matches(msg, k.End):
		a.scroll[a.selected] = a.maxScroll(a.selected)
	default:
		for i, b := range k.Panels {
			if key.Matches(msg, b) {
				a.panels.Toggle(Panel(i))
				if !a.panels.Visible(a.selected) {
					a.cyclePanel(1)
				}
				break
			}
		}
	}
	return false
}

// cyclePanel moves the selection by delta among visible panels. With no
// visible panel the selection is unchanged.
func (a *App) cyclePanel(delta int) {
	n := int(panelCount)
	for step := 1; step <= n; step++ {
		p := Panel(((int(a.selected)+delta*step)%n + n) % n)
		if a.panels.Visible(p) {
			a.selected = p
			return
		}
	}
}

func (a *App) scrollBy(delta int) {
	off := a.scroll[a.selected] + delta
	a.scroll[a.selected] = max(0, min(off, a.maxScroll(a.selected)))
}

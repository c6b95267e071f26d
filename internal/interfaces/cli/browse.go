package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gitty.dev/cli/internal/core/object"
)

const previewLines = 12

// BrowseFlags holds command-line flags for the browse command
type BrowseFlags struct {
	Verify bool
}

// objectGetter is what the browser needs from the object service
type objectGetter interface {
	Get(ctx context.Context, id object.ID) (*object.Object, error)
}

func newBrowseCommand(s *session) *cobra.Command {
	flags := &BrowseFlags{}

	cmd := &cobra.Command{
		Use:   "browse [<rev>]",
		Short: "Walk the object graph interactively",
		Long: `Open a terminal browser on an object and follow the ids it links to:
a commit's tree and parents, a tree's entries, a tag's target.

Controls:
  up/down, k/j   select a link
  enter          open the selected object
  backspace, h   go back
  q              quit`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			return runBrowse(cmd, s.get(), flags, rev)
		},
	}

	cmd.Flags().BoolVar(&flags.Verify, "verify", false, "Check each object's hash as it is opened")

	return cmd
}

func runBrowse(cmd *cobra.Command, c *CLIContainer, flags *BrowseFlags, rev string) error {
	ctx := cmd.Context()
	id, err := c.Objects.Resolve(ctx, rev)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	model := newBrowseModel(ctx, c.Objects, id, newBrowseStyles(out, c.NoColor))
	model.verify = flags.Verify

	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("browse failed: %w", err)
	}
	return nil
}

// link is one followable id shown under the current object
type link struct {
	Label string
	ID    object.ID
}

// browseModel holds the state for the Bubble Tea object browser
type browseModel struct {
	ctx      context.Context
	objects  objectGetter
	styles   browseStyles
	verify   bool
	start    object.ID
	current  *object.Object
	links    []link
	preview  []string
	selected int
	back     []object.ID
	loading  bool
	width    int
	height   int
	err      error
}

func newBrowseModel(ctx context.Context, objects objectGetter, start object.ID, styles browseStyles) browseModel {
	return browseModel{
		ctx:     ctx,
		objects: objects,
		styles:  styles,
		start:   start,
		loading: true,
	}
}

// Init implements the Bubble Tea init method
func (m browseModel) Init() tea.Cmd {
	return m.loadCmd(m.start)
}

// Update implements the Bubble Tea update method
func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down", "j":
			if m.selected < len(m.links)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			if m.loading || m.selected >= len(m.links) {
				return m, nil
			}
			if m.current != nil {
				m.back = append(m.back, m.current.ID)
			}
			m.loading = true
			return m, m.loadCmd(m.links[m.selected].ID)

		case "backspace", "h":
			if m.loading || len(m.back) == 0 {
				return m, nil
			}
			prev := m.back[len(m.back)-1]
			m.back = m.back[:len(m.back)-1]
			m.loading = true
			return m, m.loadCmd(prev)
		}

	case objectLoadedMsg:
		m.loading = false
		m.err = nil
		m.current = msg.obj
		m.links = msg.links
		m.preview = msg.preview
		m.selected = 0
		return m, nil

	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

// View implements the Bubble Tea view method
func (m browseModel) View() string {
	parts := []string{m.renderHeader()}
	if m.err != nil {
		parts = append(parts, m.styles.err.Render(fmt.Sprintf("\n  %v\n", m.err)))
	} else {
		parts = append(parts, m.renderLinks(), m.renderPreview())
	}
	parts = append(parts, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m browseModel) renderHeader() string {
	title := m.styles.title.Render("gitty browse")
	if m.current == nil {
		return lipgloss.JoinVertical(lipgloss.Left, title, m.styles.dim.Render("loading..."))
	}

	info := fmt.Sprintf("%s %s | %s | depth %d",
		m.styles.kind.Render(m.current.Kind.String()),
		m.styles.id.Render(m.current.ID.String()),
		humanize.IBytes(uint64(m.current.Size)),
		len(m.back),
	)
	return lipgloss.JoinVertical(lipgloss.Left, title, info, m.styles.dim.Render(strings.Repeat("─", 40)))
}

func (m browseModel) renderLinks() string {
	if len(m.links) == 0 {
		return m.styles.dim.Render("  no links")
	}

	first, last := 0, len(m.links)
	if maxRows := m.height - previewLines - 8; m.height > 0 && maxRows > 0 && last > maxRows {
		first = max(0, min(m.selected-maxRows/2, last-maxRows))
		last = first + maxRows
	}

	rows := make([]string, 0, last-first)
	for i := first; i < last; i++ {
		l := m.links[i]
		row := fmt.Sprintf("  %s  %s", l.ID.Short(12), l.Label)
		if i == m.selected {
			row = m.styles.selected.Render(">" + row[1:])
		}
		rows = append(rows, row)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m browseModel) renderPreview() string {
	if len(m.preview) == 0 {
		return ""
	}
	return m.styles.preview.Render("\n" + strings.Join(m.preview, "\n"))
}

func (m browseModel) renderFooter() string {
	return m.styles.dim.Render("[↑↓] Select | [enter] Open | [backspace] Back | [q] Quit")
}

// objectLoadedMsg is sent when an object has been read and decoded
type objectLoadedMsg struct {
	obj     *object.Object
	links   []link
	preview []string
}

// errMsg is sent when an error occurs
type errMsg struct {
	err error
}

func (m browseModel) loadCmd(id object.ID) tea.Cmd {
	ctx, objects, verify := m.ctx, m.objects, m.verify
	return func() tea.Msg {
		obj, err := objects.Get(ctx, id)
		if err != nil {
			return errMsg{err: err}
		}
		if verify {
			if err := obj.Verify(); err != nil {
				return errMsg{err: err}
			}
		}
		links, preview, err := describeObject(obj)
		if err != nil {
			return errMsg{err: err}
		}
		return objectLoadedMsg{obj: obj, links: links, preview: preview}
	}
}

// describeObject lists the ids an object refers to and a short text preview
func describeObject(obj *object.Object) ([]link, []string, error) {
	content, err := obj.Decode()
	if err != nil {
		return nil, nil, err
	}

	var links []link
	var text []byte
	switch c := content.(type) {
	case *object.Commit:
		links = append(links, link{Label: "tree", ID: c.Tree})
		for i, p := range c.Parents {
			links = append(links, link{Label: fmt.Sprintf("parent %d", i+1), ID: p})
		}
		text = []byte("author " + c.Author + "\n\n")
		text = append(text, c.Message...)
	case *object.Tree:
		for _, e := range c.Entries {
			// submodule commits live in another repository
			if e.Type() == object.KindCommit {
				continue
			}
			links = append(links, link{Label: fmt.Sprintf("%06o %-4s %s", e.Mode, e.Type(), e.Name), ID: e.ID})
		}
	case *object.Tag:
		links = append(links, link{Label: fmt.Sprintf("object (%s)", c.Type), ID: c.Object})
		text = []byte("tag " + c.Name + "\n\n")
		text = append(text, c.Message...)
	case *object.Blob:
		text = c.Data
	}

	return links, previewOf(text), nil
}

func previewOf(text []byte) []string {
	if len(text) == 0 {
		return nil
	}
	if bytes.IndexByte(text, 0) >= 0 {
		return []string{"(binary)"}
	}
	lines := strings.Split(strings.TrimRight(string(text), "\n"), "\n")
	if len(lines) > previewLines {
		lines = append(lines[:previewLines], "...")
	}
	for i, l := range lines {
		lines[i] = truncateString(strings.ReplaceAll(l, "\t", "    "), 100)
	}
	return lines
}

// truncateString truncates a string to the specified number of runes
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}

// browseStyles holds the lipgloss styles of the browser
type browseStyles struct {
	title    lipgloss.Style
	kind     lipgloss.Style
	id       lipgloss.Style
	selected lipgloss.Style
	preview  lipgloss.Style
	dim      lipgloss.Style
	err      lipgloss.Style
}

func newBrowseStyles(w io.Writer, noColor bool) browseStyles {
	if noColor {
		return browseStyles{}
	}
	r := lipgloss.NewRenderer(w)
	return browseStyles{
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		kind:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
		id:       r.NewStyle().Foreground(lipgloss.Color("214")),
		selected: r.NewStyle().Background(lipgloss.Color("240")),
		preview:  r.NewStyle().Foreground(lipgloss.Color("252")),
		dim:      r.NewStyle().Foreground(lipgloss.Color("245")),
		err:      r.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

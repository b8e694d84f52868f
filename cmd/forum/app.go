package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"forum/internal/client"
	"forum/internal/model"
	"forum/internal/view"
)

type screen int

const (
	screenHome screen = iota
	screenTopic
	screenUsers
)

const (
	maxToasts = 3
	toastTTL  = 4 * time.Second
)

var homeHelp = []string{
	"register <user> <password>   create an account",
	"login <user> <password>      open a session",
	"logout                       close the session",
	"topics                       list topics",
	"new <title>                  create a topic",
	"open <topic id>              read a topic",
	"users                        manage users (admin)",
	"quit",
}

var topicHelp = []string{
	"post <text>          post a message",
	"edit <message id>    start or stop editing a message",
	"save <text>          save the edited message",
	"delete <message id>  delete a message",
	"refresh              fetch the topic now",
	"back",
}

var usersHelp = []string{
	"filter [text]              filter by username",
	"edit <user id>             start or stop editing a user",
	"save <username> <yes|no>   save the edited user",
	"delete <user id>           delete a user",
	"back",
}

type services struct {
	topics   *client.TopicsService
	messages *client.MessagesService
	users    *client.UsersService
	logger   *logrus.Logger
	metrics  *client.Metrics
	interval time.Duration
	clock    view.Clock
}

type resultMsg struct {
	lines []string
	err   error
}

type topicOpenedMsg struct {
	view *view.TopicView
	err  error
}

type usersOpenedMsg struct {
	view  *view.ManagementView
	lines []string
	err   error
}

type toast struct {
	id   int
	text string
}

// app is the terminal screen. Anything that talks to the server runs as
// a tea.Cmd; the views it drives are safe to read from the update loop.
type app struct {
	ctx    context.Context
	svc    services
	events *events

	screen screen
	topic  *view.TopicView
	users  *view.ManagementView

	input   string
	output  []string
	failed  bool
	toasts  []toast
	toastID int
	confirm *confirmRequest
	busy    bool
	width   int
}

func newApp(ctx context.Context, svc services, ev *events) *app {
	return &app{
		ctx:    ctx,
		svc:    svc,
		events: ev,
		output: homeHelp,
	}
}

func (m *app) Init() tea.Cmd {
	return m.events.wait()
}

func (m *app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case changedMsg:
		return m, m.events.wait()
	case toastMsg:
		m.toastID++
		id := m.toastID
		m.toasts = append(m.toasts, toast{id: id, text: msg.text})
		if len(m.toasts) > maxToasts {
			m.toasts = m.toasts[len(m.toasts)-maxToasts:]
		}
		return m, tea.Batch(m.events.wait(), tea.Tick(toastTTL, func(time.Time) tea.Msg {
			return toastExpiredMsg{id: id}
		}))
	case toastExpiredMsg:
		for i, t := range m.toasts {
			if t.id == msg.id {
				m.toasts = append(m.toasts[:i:i], m.toasts[i+1:]...)
				break
			}
		}
	case confirmMsg:
		m.confirm = msg.req
		return m, m.events.wait()

	case resultMsg:
		m.busy = false
		m.show(msg.lines, msg.err)
	case topicOpenedMsg:
		m.busy = false
		if msg.err != nil {
			m.show(nil, msg.err)
			break
		}
		m.topic, m.screen = msg.view, screenTopic
		m.show(nil, nil)
	case usersOpenedMsg:
		m.busy = false
		if msg.view == nil {
			m.show(msg.lines, msg.err)
			break
		}
		m.users, m.screen = msg.view, screenUsers
		m.show(nil, nil)
	}
	return m, nil
}

func (m *app) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	if m.confirm != nil {
		switch msg.String() {
		case "y":
			m.answer(true)
		case "n", "esc":
			m.answer(false)
		}
		return nil
	}

	switch msg.Type {
	case tea.KeyEnter:
		if m.busy {
			return nil
		}
		line := strings.TrimSpace(m.input)
		m.input = ""
		return m.execute(line)
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeyEsc:
		m.input = ""
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return nil
}

func (m *app) answer(ok bool) {
	m.confirm.reply <- ok
	m.confirm = nil
}

func (m *app) execute(line string) tea.Cmd {
	cmd, arg := split(line)
	switch cmd {
	case "":
		return nil
	case "quit", "exit":
		return tea.Quit
	case "help":
		switch m.screen {
		case screenTopic:
			m.show(topicHelp, nil)
		case screenUsers:
			m.show(usersHelp, nil)
		default:
			m.show(homeHelp, nil)
		}
		return nil
	}

	switch m.screen {
	case screenTopic:
		return m.topicCommand(cmd, arg)
	case screenUsers:
		return m.usersCommand(cmd, arg)
	}
	return m.homeCommand(cmd, arg)
}

// run executes fn off the update loop and reports its outcome.
func (m *app) run(fn func(ctx context.Context) ([]string, error)) tea.Cmd {
	m.busy = true
	ctx := m.ctx
	return func() tea.Msg {
		lines, err := fn(ctx)
		return resultMsg{lines: lines, err: err}
	}
}

func (m *app) homeCommand(cmd, arg string) tea.Cmd {
	svc := m.svc
	switch cmd {
	case "register":
		name, password := split(arg)
		return m.run(func(ctx context.Context) ([]string, error) {
			draft := model.User{Username: name, Password: password, PasswordConfirm: password}
			if _, err := svc.users.Create(ctx, draft); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("Registered %s, you can log in now", name)}, nil
		})
	case "login":
		name, password := split(arg)
		return m.run(func(ctx context.Context) ([]string, error) {
			return login(ctx, svc.users, name, password)
		})
	case "logout":
		return m.run(func(ctx context.Context) ([]string, error) {
			return []string{"Logged out"}, svc.users.Logout(ctx)
		})
	case "topics":
		return m.run(func(ctx context.Context) ([]string, error) {
			topics, err := svc.topics.FetchAll(ctx)
			if err != nil {
				return nil, err
			}
			svc.topics.Store.Replace(topics)
			lines := make([]string, 0, len(topics))
			for _, t := range topics {
				author := ""
				if t.Author != nil {
					author = t.Author.Username
				}
				lines = append(lines, fmt.Sprintf("%4d  %-40s %s  %s", t.ID, t.Title, author, formatDate(t.Date)))
			}
			if len(lines) == 0 {
				lines = append(lines, "No topics yet")
			}
			return lines, nil
		})
	case "new":
		return m.run(func(ctx context.Context) ([]string, error) {
			t, err := svc.topics.Create(ctx, model.Topic{Title: arg, Date: model.Now()})
			if err != nil {
				return nil, err
			}
			svc.topics.Store.Upsert(t)
			return []string{fmt.Sprintf("Created topic %d", t.ID)}, nil
		})
	case "open":
		id, err := parseID(arg)
		if err != nil {
			m.show(nil, err)
			return nil
		}
		return m.openTopic(id)
	case "users":
		return m.openUsers()
	}
	m.show(nil, fmt.Errorf("unknown command %q, type help", cmd))
	return nil
}

func login(ctx context.Context, users *client.UsersService, name, password string) ([]string, error) {
	user, err := users.Login(ctx, name, password)
	if err != nil {
		return nil, err
	}
	role := ""
	if user.Admin {
		role = " (admin)"
	}
	return []string{fmt.Sprintf("Logged in as %s%s", user.Username, role)}, nil
}

func (m *app) openTopic(id int64) tea.Cmd {
	m.busy = true
	ctx, svc, ev := m.ctx, m.svc, m.events
	return func() tea.Msg {
		v := view.NewTopicView(view.TopicDeps{
			Topics:       svc.topics,
			Messages:     svc.messages,
			MessageStore: svc.messages.Store,
			TopicStore:   svc.topics.Store,
			Connected:    svc.users.Connected,
			Dialog:       ev,
			Notifier:     ev,
			Clock:        svc.clock,
			PollInterval: svc.interval,
			Logger:       svc.logger,
			Metrics:      svc.metrics,
		})
		if err := v.Activate(ctx, id); err != nil {
			v.Close()
			return topicOpenedMsg{err: err}
		}
		return topicOpenedMsg{view: v}
	}
}

func (m *app) openUsers() tea.Cmd {
	m.busy = true
	ctx, svc, ev := m.ctx, m.svc, m.events
	return func() tea.Msg {
		v := view.NewManagementView(view.ManagementDeps{
			Users:     svc.users,
			Store:     svc.users.Store,
			Connected: svc.users.Connected,
			Dialog:    ev,
			Notifier:  ev,
			Logger:    svc.logger,
		})
		if err := v.Activate(ctx); err != nil {
			v.Close()
			return usersOpenedMsg{err: err}
		}
		if !v.ConnectedIsAdmin() {
			v.Close()
			return usersOpenedMsg{lines: []string{"Only administrators can manage users"}}
		}
		return usersOpenedMsg{view: v}
	}
}

func (m *app) topicCommand(cmd, arg string) tea.Cmd {
	v := m.topic
	switch cmd {
	case "post":
		return m.run(func(ctx context.Context) ([]string, error) {
			return nil, v.Post(ctx, arg)
		})
	case "edit":
		id, err := parseID(arg)
		if err == nil {
			err = v.ToggleEdit(id)
		}
		if err != nil {
			m.show(nil, err)
			return nil
		}
		if _, editing := v.Edited(); editing {
			m.input = "save " + v.EditContent()
		}
		m.show(nil, nil)
		return nil
	case "save":
		return m.run(func(ctx context.Context) ([]string, error) {
			return nil, v.SubmitEdit(ctx, arg)
		})
	case "delete":
		id, err := parseID(arg)
		if err != nil {
			m.show(nil, err)
			return nil
		}
		return m.run(func(ctx context.Context) ([]string, error) {
			return nil, v.Delete(ctx, id)
		})
	case "refresh":
		return m.run(func(ctx context.Context) ([]string, error) {
			return nil, v.Refresh(ctx)
		})
	case "back":
		return m.leave()
	}
	m.show(nil, fmt.Errorf("unknown command %q, type help", cmd))
	return nil
}

func (m *app) usersCommand(cmd, arg string) tea.Cmd {
	v := m.users
	switch cmd {
	case "filter":
		v.SetFilter(arg)
		m.show(nil, nil)
		return nil
	case "edit":
		id, err := parseID(arg)
		if err == nil {
			err = v.ToggleEdit(id)
		}
		if err != nil {
			m.show(nil, err)
			return nil
		}
		if _, editing := v.Edited(); editing {
			name, admin := v.Draft()
			m.input = "save " + name + " " + yesNo(admin)
		}
		m.show(nil, nil)
		return nil
	case "save":
		name, admin := split(arg)
		if admin != "yes" && admin != "no" {
			m.show(nil, errors.New("usage: save <username> <yes|no>"))
			return nil
		}
		return m.run(func(ctx context.Context) ([]string, error) {
			return nil, v.SubmitEdit(ctx, name, admin == "yes")
		})
	case "delete":
		id, err := parseID(arg)
		if err != nil {
			m.show(nil, err)
			return nil
		}
		return m.run(func(ctx context.Context) ([]string, error) {
			return nil, v.Delete(ctx, id)
		})
	case "back":
		return m.leave()
	}
	m.show(nil, fmt.Errorf("unknown command %q, type help", cmd))
	return nil
}

// leave returns to the home screen. Closing a topic view waits for its
// poller, so it happens off the update loop.
func (m *app) leave() tea.Cmd {
	topic, users := m.topic, m.users
	m.topic, m.users = nil, nil
	m.screen = screenHome
	m.show(nil, nil)
	return func() tea.Msg {
		if topic != nil {
			topic.Close()
		}
		if users != nil {
			users.Close()
		}
		return nil
	}
}

// shutdown releases what the screen still holds once the program ended.
func (m *app) shutdown() {
	m.events.close()
	if m.topic != nil {
		m.topic.Close()
	}
	if m.users != nil {
		m.users.Close()
	}
}

func (m *app) show(lines []string, err error) {
	m.failed = err != nil
	if err != nil {
		lines = []string{describe(err)}
	}
	m.output = lines
}

// describe turns an error into the line shown under the screen.
func describe(err error) string {
	var verr *view.ValidationError
	var terr *client.TransportError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &terr) && terr.Message != "":
		return "Server: " + terr.Message
	}
	return err.Error()
}

func (m *app) prompt() string {
	switch m.screen {
	case screenTopic:
		if id, editing := m.topic.Edited(); editing {
			return "edit #" + strconv.FormatInt(id, 10) + "> "
		}
		return "topic> "
	case screenUsers:
		return "users> "
	}
	if u, ok := m.svc.users.Connected.Get(); ok && u != nil {
		return u.Username + "> "
	}
	return "> "
}

func split(line string) (string, string) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	return cmd, strings.TrimSpace(rest)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("expected a numeric id")
	}
	return id, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatDate(t model.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 2006 at 3:04PM")
}

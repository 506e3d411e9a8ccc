// Package mailer renders and sends the archiver's failure notifications.
// Each notification is a pair of mails, one to the support desk and one to
// the initiating user. Templates are markdown with a YAML frontmatter
// carrying the subject; delivery is a fire-and-forget side channel and never
// blocks or fails the pipeline.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"go.abhg.dev/goldmark/frontmatter"

	"github.com/jgivc/regarchive/internal/config"
	"github.com/jgivc/regarchive/internal/entity"
)

const (
	KindSizeExceeded = "size_exceeded"
	KindCopyError    = "copy_error"
	KindUncaught     = "uncaught_error"

	suffixDesk = "_desk.md"
	suffixUser = "_user.md"
)

//go:embed templates/*.md
var templateFS embed.FS

type Mail struct {
	To      string
	From    string
	Subject string
	HTML    string
}

// Sender delivers one rendered mail.
type Sender interface {
	Send(ctx context.Context, mail Mail) error
}

// MailContext is the data available to the templates.
type MailContext struct {
	User    *entity.User
	Src     *entity.Node
	Payload any
}

type tmplMeta struct {
	Subject string `yaml:"subject"`
}

type Mailer struct {
	cfg    *config.MailConfig
	sender Sender
	md     goldmark.Markdown
	tmpls  map[string]string
	log    *slog.Logger
}

func New(cfg *config.MailConfig, sender Sender, log *slog.Logger) (*Mailer, error) {
	tmpls := make(map[string]string)

	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("cannot read mail templates: %w", err)
	}

	for _, e := range entries {
		data, err := fs.ReadFile(templateFS, "templates/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("cannot read mail template %s: %w", e.Name(), err)
		}
		tmpls[e.Name()] = string(data)
	}

	return &Mailer{
		cfg:    cfg,
		sender: sender,
		md: goldmark.New(
			goldmark.WithExtensions(&frontmatter.Extender{}),
		),
		tmpls: tmpls,
		log:   log.With(slog.String("service", "mailer")),
	}, nil
}

// NotifyFailure sends the desk and user mails matching the failure kind.
// Delivery problems are logged and swallowed.
func (m *Mailer) NotifyFailure(ctx context.Context, status entity.TargetStatus, user *entity.User, src *entity.Node, payload any) {
	kind := templateKind(status)
	data := &MailContext{User: user, Src: src, Payload: payload}

	m.deliver(ctx, kind+suffixDesk, m.cfg.SupportAddr, data)
	m.deliver(ctx, kind+suffixUser, user.Username, data)
}

func (m *Mailer) deliver(ctx context.Context, name, to string, data *MailContext) {
	mail, err := m.render(name, data)
	if err != nil {
		m.log.Error("Cannot render mail", slog.String("template", name), slog.Any("error", err))

		return
	}

	mail.To = to
	mail.From = m.cfg.FromAddr

	if err := m.sender.Send(ctx, mail); err != nil {
		m.log.Error("Cannot send mail", slog.String("to", to), slog.Any("error", err))

		return
	}

	m.log.Info("Mail sent", slog.String("to", to), slog.String("template", name))
}

func (m *Mailer) render(name string, data *MailContext) (Mail, error) {
	src, ok := m.tmpls[name]
	if !ok {
		return Mail{}, fmt.Errorf("unknown mail template %q", name)
	}

	tmpl, err := texttemplate.New(name).Parse(src)
	if err != nil {
		return Mail{}, fmt.Errorf("cannot parse mail template %s: %w", name, err)
	}

	var filled bytes.Buffer
	if err := tmpl.Execute(&filled, data); err != nil {
		return Mail{}, fmt.Errorf("cannot execute mail template %s: %w", name, err)
	}

	var body bytes.Buffer
	pctx := parser.NewContext()
	if err := m.md.Convert(filled.Bytes(), &body, parser.WithContext(pctx)); err != nil {
		return Mail{}, fmt.Errorf("cannot render mail template %s: %w", name, err)
	}

	var meta tmplMeta
	if fm := frontmatter.Get(pctx); fm != nil {
		if err := fm.Decode(&meta); err != nil {
			return Mail{}, fmt.Errorf("cannot decode mail frontmatter %s: %w", name, err)
		}
	}

	return Mail{Subject: meta.Subject, HTML: body.String()}, nil
}

// templateKind maps the failure taxonomy to mail template families. File
// lookup failures during finalization have no dedicated template and ride
// the uncaught pair.
func templateKind(status entity.TargetStatus) string {
	switch status {
	case entity.StatusSizeExceeded:
		return KindSizeExceeded
	case entity.StatusNetworkError:
		return KindCopyError
	default:
		return KindUncaught
	}
}

// LogSender writes mails to the log instead of delivering them. It is the
// default sender until a real delivery channel is wired in.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log.With(slog.String("item", "LogSender"))}
}

func (s *LogSender) Send(_ context.Context, mail Mail) error {
	s.log.Info("Mail",
		slog.String("to", mail.To),
		slog.String("from", mail.From),
		slog.String("subject", mail.Subject),
	)

	return nil
}

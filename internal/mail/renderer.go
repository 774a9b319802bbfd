package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/segmentio/ksuid"
)

//go:embed templates/*.txt templates/*.html
var templateFS embed.FS

// Email is a fully rendered message ready for a Sender.
type Email struct {
	ID       string
	Template Template
	From     string
	To       string
	Subject  string
	Text     string
	HTML     string
	Date     time.Time
}

// RendererConfig carries the identity and link settings shared by every
// rendered message.
type RendererConfig struct {
	BaseURL       string
	Sender        string
	SubjectPrefix string

	// LinkTTL is the lifetime of the tokens being mailed. Zero leaves the
	// expiry sentence out.
	LinkTTL time.Duration
}

// Renderer renders notifications with the embedded templates.
type Renderer struct {
	cfg  RendererConfig
	text map[Template]*texttemplate.Template
	html map[Template]*htmltemplate.Template
	now  func() time.Time
}

// NewRenderer parses the embedded templates. Every known Template must have
// both a .txt and an .html file.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	r := &Renderer{
		cfg:  cfg,
		text: make(map[Template]*texttemplate.Template, len(Templates)),
		html: make(map[Template]*htmltemplate.Template, len(Templates)),
		now:  time.Now,
	}

	for _, id := range Templates {
		name := "templates/" + string(id)

		txt, err := texttemplate.New(string(id) + ".txt").
			Option("missingkey=error").
			ParseFS(templateFS, name+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse %s.txt: %w", name, err)
		}
		html, err := htmltemplate.New(string(id) + ".html").
			Option("missingkey=error").
			ParseFS(templateFS, name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s.html: %w", name, err)
		}

		r.text[id] = txt
		r.html[id] = html
	}
	return r, nil
}

// Render produces the email for n.
func (r *Renderer) Render(n Notification) (Email, error) {
	if err := n.Validate(); err != nil {
		return Email{}, fmt.Errorf("invalid notification: %w", err)
	}

	txt, ok := r.text[n.Template]
	if !ok {
		return Email{}, fmt.Errorf("unknown template %q", n.Template)
	}
	html := r.html[n.Template]

	data := make(map[string]any, len(n.Context)+2)
	for key, value := range n.Context {
		data[key] = value
	}
	data["BaseURL"] = r.cfg.BaseURL
	data["ExpiresIn"] = formatTTL(r.cfg.LinkTTL)

	var textBody, htmlBody bytes.Buffer
	if err := txt.Execute(&textBody, data); err != nil {
		return Email{}, fmt.Errorf("render %s.txt: %w", n.Template, err)
	}
	if err := html.Execute(&htmlBody, data); err != nil {
		return Email{}, fmt.Errorf("render %s.html: %w", n.Template, err)
	}

	return Email{
		ID:       ksuid.New().String(),
		Template: n.Template,
		From:     r.cfg.Sender,
		To:       n.To,
		Subject:  r.cfg.SubjectPrefix + n.Subject,
		Text:     textBody.String(),
		HTML:     htmlBody.String(),
		Date:     r.now(),
	}, nil
}

// formatTTL spells d in the largest whole unit, e.g. "1 hour" or "90 minutes".
func formatTTL(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.Round(time.Second).String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

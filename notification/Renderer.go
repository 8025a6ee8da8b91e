package notification

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	html "github.com/gofiber/template/html/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"raffle-service/utils"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed locales/*.toml
var localeFiles embed.FS

const layoutName = "layout"

type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

type view struct {
	Payload
	Recipient  Recipient
	Kind       Kind
	When       string
	NumberList string
}

// Renderer turns a notification kind and payload into a localized subject, an HTML body and a short text body.
type Renderer struct {
	engine    *html.Engine
	localizer *i18n.Localizer
	location  *time.Location
}

func NewRenderer(locale string, location *time.Location) (*Renderer, error) {
	bundle := i18n.NewBundle(language.Spanish)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, file := range []string{"locales/active.es.toml", "locales/active.en.toml"} {
		if _, err := bundle.LoadMessageFileFS(localeFiles, file); err != nil {
			return nil, fmt.Errorf("unable to load %s: %w", file, err)
		}
	}
	if location == nil {
		location = time.UTC
	}
	r := &Renderer{
		localizer: i18n.NewLocalizer(bundle, locale, language.Spanish.String()),
		location:  location,
	}

	sub, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("t", func(id string) string {
		return utils.Localize(r.localizer, id, nil)
	})
	engine.AddFunc("tr", func(id string, data view) string {
		return r.localize(id, data)
	})
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("unable to load notification templates: %w", err)
	}
	r.engine = engine
	return r, nil
}

func (r *Renderer) Render(kind Kind, to Recipient, payload Payload) (*Rendered, error) {
	data := view{
		Payload:    payload,
		Recipient:  to,
		Kind:       kind,
		NumberList: strings.Join(payload.Numbers, ", "),
	}
	if !payload.DrawDate.IsZero() {
		data.When = payload.DrawDate.In(r.location).Format("02/01/2006 15:04")
	}
	var body bytes.Buffer
	if err := r.engine.Render(&body, string(kind), data, layoutName); err != nil {
		return nil, fmt.Errorf("unable to render %s: %w", kind, err)
	}
	return &Rendered{
		Subject: r.localize("subject_"+string(kind), data),
		HTML:    body.String(),
		Text:    r.localize("sms_"+string(kind), data),
	}, nil
}

func (r *Renderer) localize(id string, data view) string {
	msg, err := r.localizer.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		utils.LogMessage(utils.WARNING, "Renderer: missing translation "+id+", err: "+err.Error(), "notification")
		return id
	}
	return msg
}

package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"ordersite/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Templates holds the parsed HTML and text bodies for every Type.
type Templates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func LoadTemplates() (*Templates, error) {
	html, err := htmltemplate.New("mail").ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.New("mail").ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Templates{html: html, text: text}, nil
}

type templateData struct {
	SiteName string
	Site     models.SiteSettings
	View     interface{}
	Now      string
}

func (t *Templates) Render(kind Type, data templateData, subjectRef string) (*Rendered, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := t.html.ExecuteTemplate(&htmlBuf, string(kind)+".html.tmpl", data); err != nil {
		return nil, fmt.Errorf("render %s html: %w", kind, err)
	}
	if err := t.text.ExecuteTemplate(&textBuf, string(kind)+".txt.tmpl", data); err != nil {
		return nil, fmt.Errorf("render %s text: %w", kind, err)
	}
	return &Rendered{
		Subject: subject(kind, data.SiteName, subjectRef),
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}

func subject(kind Type, site, orderNumber string) string {
	switch kind {
	case OrderConfirmation:
		return fmt.Sprintf("【%s】ご注文確認 - 注文番号: %s", site, orderNumber)
	case StatusUpdate:
		return fmt.Sprintf("【%s】注文ステータス更新 - 注文番号: %s", site, orderNumber)
	case ContactInquiry:
		return fmt.Sprintf("【%s】お問い合わせを受信しました", site)
	case ContactAutoReply:
		return fmt.Sprintf("【%s】お問い合わせありがとうございます", site)
	}
	return site
}

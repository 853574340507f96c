package notifier

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"resourcehive/pkg/logger"
)

// Email template names
const (
	TemplateItemApproved   = "item_approved"
	TemplateItemRejected   = "item_rejected"
	TemplateSupplyReleased = "supply_released"
	TemplateBatchCompleted = "batch_completed"
	TemplateNearOverdue    = "near_overdue"
	TemplateBatchSubmitted = "batch_submitted"
)

// TemplateData holds the named fields templates may use
type TemplateData struct {
	Name       string
	BatchID    string
	Kind       string
	Items      []TemplateLine
	Remarks    string
	ReturnDate string
	Date       string
}

type TemplateLine struct {
	Name     string
	Quantity int
	Date     string
}

// ItemList renders "A (x2), B (x1)"
func (d TemplateData) ItemList() string {
	parts := make([]string, len(d.Items))
	for i, it := range d.Items {
		parts[i] = fmt.Sprintf("%s (x%d)", it.Name, it.Quantity)
	}
	return strings.Join(parts, ", ")
}

// subject and body are separated by the first blank line
var defaultTemplates = map[string]string{
	TemplateItemApproved: `Request approved
Hello {{.Name}},

Your {{.Kind}} request {{.BatchID}} has been approved: {{.ItemList}}.
{{- if .ReturnDate}}
Return date: {{.ReturnDate}}
{{- end}}
{{- if .Remarks}}
Remarks: {{.Remarks}}
{{- end}}

Thank you,
Resource Hive Team`,
	TemplateItemRejected: `Request rejected
Hello {{.Name}},

Your {{.Kind}} request {{.BatchID}} was not approved for: {{.ItemList}}.
{{- if .Remarks}}
Reason: {{.Remarks}}
{{- end}}

Thank you,
Resource Hive Team`,
	TemplateSupplyReleased: `Supplies ready
Hello {{.Name}},

The supplies of request {{.BatchID}} were released to you on {{.Date}}: {{.ItemList}}.

Thank you,
Resource Hive Team`,
	TemplateBatchCompleted: `Request completed
Hello {{.Name}},

All items of your {{.Kind}} request {{.BatchID}} were returned on {{.Date}}: {{.ItemList}}.

Thank you,
Resource Hive Team`,
	TemplateBatchSubmitted: `New {{.Kind}} request
Hello {{.Name}},

A new {{.Kind}} request {{.BatchID}} is waiting for review: {{.ItemList}}.
{{- if .Remarks}}
Purpose: {{.Remarks}}
{{- end}}

Thank you,
Resource Hive Team`,
	TemplateNearOverdue: `Return reminder
Hello {{.Name}},

This is a reminder that your borrow of {{.ItemList}} is due for return on {{.ReturnDate}}.

Please return the item(s) on or before the due date.

Thank you,
Resource Hive Team`,
}

// TemplateSource returns an override for a template, if one is stored
type TemplateSource interface {
	Template(ctx context.Context, name string) (string, bool, error)
}

type Templates struct {
	source TemplateSource

	mu     sync.Mutex
	parsed map[string]*template.Template
}

// NewTemplates uses source overrides when present. source may be nil.
func NewTemplates(source TemplateSource) *Templates {
	return &Templates{source: source, parsed: make(map[string]*template.Template)}
}

// Render returns subject and body of the named template
func (t *Templates) Render(ctx context.Context, name string, data TemplateData) (string, string, error) {
	text, ok := defaultTemplates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}
	if t.source != nil {
		override, found, err := t.source.Template(ctx, name)
		if err != nil {
			logger.Warn(ctx).Err(err).Str("template", name).Msg("template override lookup failed, using default")
		} else if found {
			text = override
		}
	}

	tmpl, err := t.parse(text)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render template %s: %w", name, err)
	}

	subject, body, _ := strings.Cut(buf.String(), "\n")
	return strings.TrimSpace(subject), strings.TrimLeft(body, "\n"), nil
}

func (t *Templates) parse(text string) (*template.Template, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tmpl, ok := t.parsed[text]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New("message").Parse(text)
	if err != nil {
		return nil, err
	}
	t.parsed[text] = tmpl
	return tmpl, nil
}

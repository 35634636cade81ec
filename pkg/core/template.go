package core

import (
	"fmt"
	"slices"
	"sort"
)

// TemplateField describes one field a template pre-populates.
type TemplateField struct {
	Name      string    `yaml:"name"`
	Label     string    `yaml:"label,omitempty"`
	Type      FieldType `yaml:"type"`
	Sensitive bool      `yaml:"sensitive,omitempty"`
	Required  bool      `yaml:"required,omitempty"`
}

// Template is a named shape for new credentials.
type Template struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Fields      []TemplateField `yaml:"fields"`
	BuiltIn     bool            `yaml:"-"`
}

// Check validates a template definition.
func (t Template) Check() error {
	if t.Name == "" {
		return fmt.Errorf("template without name")
	}
	seen := map[string]struct{}{}
	for _, f := range t.Fields {
		if f.Name == "" {
			return fmt.Errorf("template %q: field without name", t.Name)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("template %q: field %q has unknown type %q", t.Name, f.Name, f.Type)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("template %q: duplicate field %q", t.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// NewCredential builds a credential with the template's fields left empty.
func (t Template) NewCredential(name string) Credential {
	c := Credential{Name: name, Template: t.Name}
	for _, f := range t.Fields {
		c.Fields = append(c.Fields, Field{
			Name:      f.Name,
			Label:     f.Label,
			Type:      f.Type,
			Sensitive: f.Sensitive,
		})
	}
	return c
}

func tf(name, label string, typ FieldType, required bool) TemplateField {
	return TemplateField{Name: name, Label: label, Type: typ, Sensitive: typ.DefaultSensitive(), Required: required}
}

var builtinTemplates = []Template{
	{Name: "login", Description: "Website or application login", Fields: []TemplateField{
		tf("username", "Username", FieldUsername, true),
		tf("password", "Password", FieldPassword, true),
		tf("url", "Website", FieldURL, false),
		tf("totp", "One-time code secret", FieldTOTPSecret, false),
	}},
	{Name: "credit_card", Description: "Payment card", Fields: []TemplateField{
		tf("cardholder", "Cardholder name", FieldText, true),
		tf("number", "Card number", FieldCardNumber, true),
		tf("expiry", "Expiry date", FieldExpiryDate, true),
		tf("cvv", "Security code", FieldCVV, false),
		tf("pin", "PIN", FieldPassword, false),
	}},
	{Name: "secure_note", Description: "Free-form encrypted note", Fields: []TemplateField{
		{Name: "content", Label: "Content", Type: FieldMultiline, Sensitive: true},
	}},
	{Name: "identity", Description: "Personal identity details", Fields: []TemplateField{
		tf("full_name", "Full name", FieldText, true),
		tf("email", "Email", FieldEmail, false),
		tf("phone", "Phone", FieldPhone, false),
		tf("birth_date", "Date of birth", FieldDate, false),
		{Name: "address", Label: "Address", Type: FieldMultiline},
	}},
	{Name: "wifi", Description: "Wireless network", Fields: []TemplateField{
		tf("ssid", "Network name", FieldText, true),
		tf("password", "Password", FieldPassword, true),
		tf("security", "Security type", FieldText, false),
	}},
	{Name: "api_key", Description: "API credential", Fields: []TemplateField{
		tf("key", "Key", FieldPassword, true),
		tf("secret", "Secret", FieldPassword, false),
		tf("endpoint", "Endpoint", FieldURL, false),
	}},
	{Name: "ssh_key", Description: "SSH key pair", Fields: []TemplateField{
		{Name: "private_key", Label: "Private key", Type: FieldMultiline, Sensitive: true, Required: true},
		{Name: "public_key", Label: "Public key", Type: FieldMultiline},
		tf("passphrase", "Passphrase", FieldPassword, false),
		tf("host", "Host", FieldText, false),
	}},
	{Name: "bank_account", Description: "Bank account", Fields: []TemplateField{
		tf("bank", "Bank name", FieldText, true),
		tf("account_number", "Account number", FieldNumber, true),
		tf("routing_number", "Routing number", FieldNumber, false),
		tf("iban", "IBAN", FieldText, false),
		tf("pin", "PIN", FieldPassword, false),
	}},
}

// BuiltinTemplates returns the built-in templates sorted by name.
func BuiltinTemplates() []Template {
	out := make([]Template, len(builtinTemplates))
	for i, t := range builtinTemplates {
		t.Fields = slices.Clone(t.Fields)
		t.BuiltIn = true
		out[i] = t
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BuiltinTemplate looks up a built-in template by name.
func BuiltinTemplate(name string) (Template, bool) {
	for _, t := range BuiltinTemplates() {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lockbox/pkg/core"
)

func TestField_Masked(t *testing.T) {
	tests := []struct {
		name  string
		field core.Field
		want  bool
	}{
		{"sensitive password", core.Field{Type: core.FieldPassword, Sensitive: true}, true},
		{"plain password", core.Field{Type: core.FieldPassword}, false},
		{"sensitive multiline", core.Field{Type: core.FieldMultiline, Sensitive: true}, false},
		{"sensitive text", core.Field{Type: core.FieldText, Sensitive: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.field.Masked())
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"bank", "work"}, core.NormalizeTags([]string{"work", " bank", "work", ""}))
	assert.Nil(t, core.NormalizeTags([]string{" ", ""}))
	assert.Nil(t, core.NormalizeTags(nil))
}

func TestCredential_SetAndRemoveField(t *testing.T) {
	c := core.Credential{Name: "Mail"}
	c.SetField(core.Field{Name: "user", Type: core.FieldUsername, Value: "a"})
	c.SetField(core.Field{Name: "user", Type: core.FieldUsername, Value: "b"})
	require.Len(t, c.Fields, 1)

	f, ok := c.Field("user")
	require.True(t, ok)
	assert.Equal(t, "b", f.Value)

	assert.True(t, c.RemoveField("user"))
	assert.False(t, c.RemoveField("user"))
}

func TestCredential_Check(t *testing.T) {
	ok := core.Credential{ID: "a", Name: "A", Fields: []core.Field{{Name: "x", Type: core.FieldText}}}
	assert.NoError(t, ok.Check())

	noName := ok.Clone()
	noName.Name = " "
	assert.Error(t, noName.Check())

	dup := ok.Clone()
	dup.Fields = append(dup.Fields, core.Field{Name: "x", Type: core.FieldText})
	assert.Error(t, dup.Check())

	badType := ok.Clone()
	badType.Fields[0].Type = "hologram"
	assert.Error(t, badType.Check())
}

func TestCredential_CloneIsDeep(t *testing.T) {
	c := core.Credential{Name: "A", Tags: []string{"t"}, Fields: []core.Field{{Name: "x", Type: core.FieldText}}}
	cp := c.Clone()
	cp.Tags[0] = "changed"
	cp.Fields[0].Value = "changed"
	assert.Equal(t, "t", c.Tags[0])
	assert.Empty(t, c.Fields[0].Value)
}

func TestBuiltinTemplates(t *testing.T) {
	templates := core.BuiltinTemplates()
	require.NotEmpty(t, templates)
	for _, tpl := range templates {
		assert.NoError(t, tpl.Check(), tpl.Name)
		assert.True(t, tpl.BuiltIn)
	}

	login, ok := core.BuiltinTemplate("login")
	require.True(t, ok)
	c := login.NewCredential("Example")
	assert.Equal(t, "login", c.Template)
	pw, ok := c.Field("password")
	require.True(t, ok)
	assert.True(t, pw.Masked())

	note, _ := core.BuiltinTemplate("secure_note")
	content, _ := note.NewCredential("n").Field("content")
	assert.False(t, content.Masked())
}

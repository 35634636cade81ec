package validate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lockbox/pkg/core"
	"github.com/aretw0/lockbox/pkg/validate"
)

var epoch = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return epoch }

func newValidator(mutate ...func(*validate.Options)) *validate.Validator {
	opts := validate.DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	return validate.New(opts, validate.WithClock(clock), validate.WithConcurrency(2))
}

func baseFiles(t *testing.T) core.FileMap {
	t.Helper()
	files, err := core.NewFileMap(epoch)
	require.NoError(t, err)
	return files
}

func addRecord(t *testing.T, files core.FileMap, p string, c core.Credential) {
	t.Helper()
	data, err := core.MarshalCredential(c)
	require.NoError(t, err)
	files[p] = data
}

func codes(r core.Report) []string {
	out := make([]string, 0, len(r.Issues))
	for _, i := range r.Issues {
		out = append(out, i.Code)
	}
	return out
}

func TestValidate_CleanRepository(t *testing.T) {
	files := baseFiles(t)
	addRecord(t, files, core.RecordPath("a"), core.Credential{ID: "a", Name: "A"})

	report, err := newValidator().Validate(context.Background(), files)
	require.NoError(t, err)
	assert.True(t, report.Empty(), report.Issues)
}

func TestValidate_MissingManifest(t *testing.T) {
	files := baseFiles(t)
	delete(files, core.ManifestPath)
	v := newValidator()

	report, err := v.Validate(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	issue := report.Issues[0]
	assert.Equal(t, core.SeverityCritical, issue.Severity)
	assert.Equal(t, core.KindMissingManifest, issue.Kind)
	assert.True(t, issue.Repairable)
	assert.False(t, issue.Repaired)

	repaired, final, err := v.ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, final.Issues, 1)
	assert.True(t, final.Issues[0].Repaired)
	assert.False(t, final.HasBlocking())
	assert.Contains(t, repaired, core.ManifestPath)
	assert.NotContains(t, files, core.ManifestPath, "input must not be mutated")
}

func TestValidateAndRepair_Idempotent(t *testing.T) {
	files := baseFiles(t)
	delete(files, core.ManifestPath)
	delete(files, "types/.keep")
	files["credentials/broken/record.yaml"] = []byte("name: [oops\n")
	addRecord(t, files, core.RecordPath("dupes"), core.Credential{
		ID:   "dupes",
		Name: "Dupes",
		Tags: []string{"x", "x"},
		Fields: []core.Field{
			{Name: "pin", Type: core.FieldPassword},
			{Name: "pin", Type: core.FieldPassword},
		},
	})
	v := newValidator()

	once, first, err := v.ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	assert.Greater(t, first.RepairedCount(), 0)

	twice, second, err := v.ValidateAndRepair(context.Background(), once)
	require.NoError(t, err)
	assert.Equal(t, 0, second.RepairedCount())
	assert.True(t, once.Equal(twice))

	report, err := v.Validate(context.Background(), once)
	require.NoError(t, err)
	again, n := v.Repair(once, report)
	assert.Equal(t, 0, n)
	assert.True(t, once.Equal(again))
}

func TestValidate_MissingDirectories(t *testing.T) {
	files := core.FileMap{core.ManifestPath: baseFiles(t)[core.ManifestPath]}
	v := newValidator()

	report, err := v.Validate(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, []string{core.CodeMissingDirectory, core.CodeMissingDirectory}, codes(report))

	repaired, final, err := v.ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 2, final.RepairedCount())
	assert.Contains(t, repaired, "credentials/.keep")
	assert.Contains(t, repaired, "types/.keep")
}

func TestValidate_SchemaSeverity(t *testing.T) {
	files := baseFiles(t)
	files["credentials/bad/record.yaml"] = []byte("id: bad\nname: Bad\nfields:\n  - name: x\n    type: hologram\n")
	files["credentials/syntax/record.yaml"] = []byte("id: [\n")

	strict, err := newValidator().Validate(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, strict.Issues, 2)
	assert.Equal(t, core.KindSchemaViolation, strict.Issues[0].Kind)
	assert.Equal(t, core.KindMalformedFile, strict.Issues[1].Kind)
	for _, i := range strict.Issues {
		assert.Equal(t, core.SeverityCritical, i.Severity)
	}

	lenient, err := newValidator(func(o *validate.Options) { o.ValidateSchemas = false }).Validate(context.Background(), files)
	require.NoError(t, err)
	for _, i := range lenient.Issues {
		assert.Equal(t, core.SeverityWarning, i.Severity)
	}
}

func TestRepair_QuarantinesUnreadableFiles(t *testing.T) {
	files := baseFiles(t)
	files["credentials/syntax/record.yaml"] = []byte("id: [\n")
	files[core.ManifestPath] = []byte("format_version: {\n")

	repaired, report, err := newValidator().ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	assert.False(t, report.HasBlocking(), report.Issues)
	assert.Equal(t, []byte("id: [\n"), repaired["quarantine/credentials/syntax/record.yaml"])
	assert.Equal(t, []byte("format_version: {\n"), repaired["quarantine/manifest.yaml"])

	m, err := core.ParseManifest(repaired[core.ManifestPath])
	require.NoError(t, err)
	assert.Equal(t, core.CurrentFormatVersion, m.FormatVersion)
}

func legacyFiles(t *testing.T) core.FileMap {
	t.Helper()
	files := core.FileMap{core.ManifestPath: []byte("format_version: 1\ncreated_at: 2020-01-01T00:00:00Z\n")}
	addRecord(t, files, "credentials/old.yaml", core.Credential{ID: "old", Name: "Old"})
	return files
}

func TestLegacy_MigratedWhenEnabled(t *testing.T) {
	files := legacyFiles(t)
	v := newValidator()

	report, err := v.Validate(context.Background(), files)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{core.CodeMissingDirectory, core.CodeLegacyVersion, core.CodeLegacyLayout}, codes(report))

	repaired, final, err := v.ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 3, final.RepairedCount(), final.Issues)
	assert.Contains(t, repaired, core.RecordPath("old"))
	assert.NotContains(t, repaired, "credentials/old.yaml")

	m, err := core.ParseManifest(repaired[core.ManifestPath])
	require.NoError(t, err)
	assert.Equal(t, core.CurrentFormatVersion, m.FormatVersion)
	require.Len(t, m.Lineage, 1)
	assert.Equal(t, core.Migration{From: 1, To: core.CurrentFormatVersion, At: epoch}, m.Lineage[0])
}

func TestLegacy_WarningWhenDisabled(t *testing.T) {
	files := legacyFiles(t)
	files["types/.keep"] = []byte{}
	v := newValidator(func(o *validate.Options) { o.CheckLegacyFormats = false })

	repaired, report, err := v.ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	require.NotEmpty(t, report.Issues)
	for _, i := range report.Issues {
		assert.Equal(t, core.SeverityWarning, i.Severity)
		assert.False(t, i.Repaired)
	}
	assert.True(t, files.Equal(repaired))
}

func TestLegacy_MissingManifestWithFlatRecords(t *testing.T) {
	files := legacyFiles(t)
	delete(files, core.ManifestPath)

	repaired, report, err := newValidator().ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	assert.False(t, report.HasBlocking(), report.Issues)
	assert.Contains(t, repaired, core.RecordPath("old"))
}

func TestValidate_FutureVersion(t *testing.T) {
	files := baseFiles(t)
	files[core.ManifestPath] = []byte("format_version: 99\n")

	_, report, err := newValidator().ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	issue, ok := report.Find(core.CodeFutureVersion)
	require.True(t, ok)
	assert.Equal(t, core.KindUnsupportedVersion, issue.Kind)
	assert.False(t, issue.Repairable)
	assert.True(t, report.HasBlocking())
}

func TestValidate_DeepContent(t *testing.T) {
	files := baseFiles(t)
	addRecord(t, files, core.RecordPath("noid"), core.Credential{Name: "No ID"})
	addRecord(t, files, core.RecordPath("wrong-dir"), core.Credential{ID: "moved", Name: "Moved"})
	addRecord(t, files, core.RecordPath("nameless"), core.Credential{ID: "nameless"})
	files["credentials/nameless/photo.png"] = []byte{0x89}
	files["credentials/ghost/attachment.bin"] = []byte{1}
	files["README.txt"] = []byte("hello")
	v := newValidator()

	report, err := v.Validate(context.Background(), files)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		core.CodeStrayFile,       // README.txt
		core.CodeEmptyName,       // nameless
		core.CodeEmptyID,         // noid
		core.CodeMisplacedRecord, // wrong-dir
		core.CodeStrayFile,       // photo.png
		core.CodeMissingRecord,   // ghost
	}, codes(report))

	shallow, err := newValidator(func(o *validate.Options) { o.DeepValidation = false }).Validate(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, []string{core.CodeStrayFile}, codes(shallow))

	repaired, final, err := v.ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	assert.Contains(t, repaired, core.RecordPath("moved"))
	assert.NotContains(t, repaired, core.RecordPath("wrong-dir"))

	c, err := core.ParseCredential(repaired[core.RecordPath("noid")])
	require.NoError(t, err)
	assert.Equal(t, "noid", c.ID)

	blocking := final.Blocking()
	require.Len(t, blocking, 1)
	assert.Equal(t, core.CodeEmptyName, blocking[0].Code)
}

func TestValidate_TOTPSecrets(t *testing.T) {
	files := baseFiles(t)
	addRecord(t, files, core.RecordPath("good"), core.Credential{ID: "good", Name: "Good", Fields: []core.Field{
		{Name: "totp", Type: core.FieldTOTPSecret, Value: "jbsw y3dp ehpk 3pxp"},
		{Name: "backup", Type: core.FieldTOTPSecret},
	}})
	addRecord(t, files, core.RecordPath("bad"), core.Credential{ID: "bad", Name: "Bad", Fields: []core.Field{
		{Name: "totp", Type: core.FieldTOTPSecret, Value: "123456"},
		{Name: "pin", Type: core.FieldPassword, Value: "123456"},
	}})

	report, err := newValidator().Validate(context.Background(), files)
	require.NoError(t, err)
	require.Equal(t, []string{core.CodeInvalidTOTP}, codes(report))
	issue := report.Issues[0]
	assert.Equal(t, core.SeverityWarning, issue.Severity)
	assert.Equal(t, "bad", issue.RecordID)
	assert.Contains(t, issue.Detail, `"totp"`)
	assert.False(t, issue.Repairable)
	assert.Empty(t, report.Blocking())

	shallow, err := newValidator(func(o *validate.Options) { o.DeepValidation = false }).Validate(context.Background(), files)
	require.NoError(t, err)
	assert.True(t, shallow.Empty(), shallow.Issues)
}

func TestValidate_DuplicateIdentifiers(t *testing.T) {
	files := baseFiles(t)
	addRecord(t, files, core.RecordPath("a"), core.Credential{ID: "a", Name: "Original"})
	addRecord(t, files, core.RecordPath("copy"), core.Credential{ID: "a", Name: "Copy"})

	repaired, report, err := newValidator().ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	issue, ok := report.Find(core.CodeDuplicateID)
	require.True(t, ok)
	assert.True(t, issue.Repaired)
	assert.Contains(t, repaired, "quarantine/credentials/copy/record.yaml")
	assert.Contains(t, repaired, core.RecordPath("a"))
}

func TestRepair_DuplicateFieldsAndTags(t *testing.T) {
	files := baseFiles(t)
	addRecord(t, files, core.RecordPath("r"), core.Credential{
		ID:   "r",
		Name: "R",
		Tags: []string{"b", "a", "b"},
		Fields: []core.Field{
			{Name: "code", Type: core.FieldText, Value: "1"},
			{Name: "code", Type: core.FieldText, Value: "2"},
			{Name: "code (2)", Type: core.FieldText, Value: "3"},
		},
	})

	repaired, report, err := newValidator().ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RepairedCount())

	c, err := core.ParseCredential(repaired[core.RecordPath("r")])
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.Tags)
	assert.Equal(t, "code", c.Fields[0].Name)
	assert.Equal(t, "code (3)", c.Fields[1].Name)
	assert.Equal(t, "code (2)", c.Fields[2].Name)
	assert.NoError(t, c.Check())
}

func TestValidateAndRepair_DisabledLeavesFiles(t *testing.T) {
	files := baseFiles(t)
	delete(files, core.ManifestPath)
	v := newValidator(func(o *validate.Options) { o.AutoRepair = false })

	out, report, err := v.ValidateAndRepair(context.Background(), files)
	require.NoError(t, err)
	assert.True(t, files.Equal(out))
	assert.True(t, report.HasBlocking())
}

func TestValidate_Cancelled(t *testing.T) {
	files := baseFiles(t)
	addRecord(t, files, core.RecordPath("a"), core.Credential{ID: "a", Name: "A"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newValidator().Validate(ctx, files)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMigrate(t *testing.T) {
	files := legacyFiles(t)
	out, err := validate.Migrate(files, 1, epoch)
	require.NoError(t, err)
	assert.Contains(t, out, core.RecordPath("old"))
	assert.Contains(t, out, "types/.keep")
	assert.Contains(t, files, "credentials/old.yaml", "input must not be mutated")

	_, err = validate.Migrate(files, core.CurrentFormatVersion+1, epoch)
	assert.Error(t, err)
	_, err = validate.Migrate(files, 0, epoch)
	assert.Error(t, err)
}

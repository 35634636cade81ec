package validate

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aretw0/lockbox/pkg/core"
)

// maxPasses bounds repair/re-validate rounds. A repair can expose an issue
// only a later pass sees, e.g. a migrated record stored under the wrong
// identifier.
const maxPasses = 3

// repairLog records what a repair pass did.
type repairLog struct {
	applied map[int]bool
	moves   map[string]string
}

func (l *repairLog) move(from, to string) {
	l.moves[from] = to
}

// resolve follows recorded moves from p.
func (l *repairLog) resolve(p string) string {
	for i := 0; i < len(l.moves); i++ {
		next, ok := l.moves[p]
		if !ok {
			break
		}
		p = next
	}
	return p
}

// Repair applies the repairable issues of report to a copy of files and
// returns it with the number of repairs applied. files is never mutated.
// Each repair is all-or-nothing.
func (v *Validator) Repair(files core.FileMap, report core.Report) (core.FileMap, int) {
	out, log := v.repair(files, report)
	return out, len(log.applied)
}

func (v *Validator) repair(files core.FileMap, report core.Report) (core.FileMap, *repairLog) {
	out := files.Clone()
	log := &repairLog{applied: map[int]bool{}, moves: map[string]string{}}
	migrated := false

	for i, issue := range report.Issues {
		if !issue.Repairable || issue.Repaired {
			continue
		}
		var err error
		switch issue.Code {
		case core.CodeMissingManifest:
			err = synthesizeManifest(out, v.now)
		case core.CodeMissingDirectory:
			out[path.Join(path.Clean(issue.Path), core.Placeholder)] = []byte{}
		case core.CodeMalformedYAML, core.CodeInvalidSchema:
			err = quarantine(out, log, issue.Path)
			if err == nil && issue.Path == core.ManifestPath {
				err = synthesizeManifest(out, v.now)
			}
		case core.CodeLegacyVersion, core.CodeLegacyLayout:
			if !migrated {
				scratch := &repairLog{moves: map[string]string{}}
				var next core.FileMap
				if next, err = migrate(out.Clone(), scratch, v.now()); err == nil {
					for from, to := range scratch.moves {
						log.move(from, to)
					}
					out = next
					migrated = true
				}
			}
		case core.CodeEmptyID:
			p := log.resolve(issue.Path)
			err = rewriteRecord(out, p, func(c *core.Credential) {
				c.ID = path.Base(path.Dir(p))
			})
		case core.CodeMisplacedRecord:
			err = relocate(out, log, log.resolve(issue.Path), core.RecordPath(issue.RecordID))
		case core.CodeDuplicateID:
			err = quarantine(out, log, log.resolve(issue.Path))
		case core.CodeDuplicateField:
			err = rewriteRecord(out, log.resolve(issue.Path), renameDuplicateFields)
		case core.CodeDuplicateTag:
			err = rewriteRecord(out, log.resolve(issue.Path), func(c *core.Credential) {
				c.Tags = core.NormalizeTags(c.Tags)
			})
		default:
			continue
		}
		if err != nil {
			v.logger.Debug("repair skipped", "code", issue.Code, "path", issue.Path, "error", err)
			continue
		}
		log.applied[i] = true
	}
	return out, log
}

// ValidateAndRepair validates files and, when auto repair is enabled,
// repairs and re-validates until nothing repairable remains. An issue is
// marked repaired only if a repair was applied to it and it is gone on the
// following pass. Issues first seen in a later pass are appended.
func (v *Validator) ValidateAndRepair(ctx context.Context, files core.FileMap) (core.FileMap, core.Report, error) {
	report, err := v.Validate(ctx, files)
	if err != nil {
		return nil, core.Report{}, err
	}
	if !v.opts.AutoRepair {
		return files, report, nil
	}

	current := files
	pending := report
	index := make(map[string]int, len(report.Issues))
	for i, issue := range report.Issues {
		index[issue.Key()] = i
	}
	moves := &repairLog{moves: map[string]string{}}

	for pass := 0; pass < maxPasses && hasRepairable(pending); pass++ {
		next, log := v.repair(current, pending)
		if len(log.applied) == 0 {
			break
		}
		for from, to := range log.moves {
			moves.move(from, to)
		}

		after, err := v.Validate(ctx, next)
		if err != nil {
			return nil, core.Report{}, err
		}
		remaining := make(map[string]bool, len(after.Issues))
		for _, issue := range after.Issues {
			remaining[issue.Key()] = true
		}

		for i, issue := range pending.Issues {
			if !log.applied[i] {
				continue
			}
			moved := issue
			moved.Path = log.resolve(issue.Path)
			if remaining[moved.Key()] {
				continue
			}
			if at, ok := index[issue.Key()]; ok {
				report.Issues[at].Repaired = true
			}
		}

		// Keep issues discovered by this pass.
		for _, issue := range after.Issues {
			if _, known := index[issue.Key()]; known {
				continue
			}
			if origin := originOf(moves, issue); origin != "" {
				if at, known := index[issue.Code+"\x00"+origin]; known {
					index[issue.Key()] = at
					continue
				}
			}
			index[issue.Key()] = len(report.Issues)
			report.Add(issue)
		}

		current = next
		pending = after
	}

	if n := report.RepairedCount(); n > 0 {
		v.logger.Debug("repairs applied", "repaired", n, "issues", len(report.Issues))
	}
	return current, report, nil
}

// originOf returns the pre-move path of issue, if it was moved.
func originOf(l *repairLog, issue core.Issue) string {
	for from := range l.moves {
		if l.resolve(from) == issue.Path {
			return from
		}
	}
	return ""
}

func hasRepairable(r core.Report) bool {
	for _, i := range r.Issues {
		if i.Repairable && !i.Repaired {
			return true
		}
	}
	return false
}

func synthesizeManifest(files core.FileMap, now func() time.Time) error {
	m := core.NewManifest(now())
	for p := range files {
		if classify(p) == classLegacyRecord {
			m.FormatVersion = 1
			break
		}
	}
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	files[core.ManifestPath] = data
	return nil
}

func quarantine(files core.FileMap, log *repairLog, p string) error {
	data, ok := files[p]
	if !ok {
		return fmt.Errorf("%s: not found", p)
	}
	target := core.QuarantinePath(p)
	for n := 1; ; n++ {
		if _, taken := files[target]; !taken {
			break
		}
		target = fmt.Sprintf("%s.%d", core.QuarantinePath(p), n)
	}
	files[target] = data
	delete(files, p)
	log.move(p, target)
	return nil
}

func relocate(files core.FileMap, log *repairLog, from, to string) error {
	data, ok := files[from]
	if !ok {
		return fmt.Errorf("%s: not found", from)
	}
	if _, taken := files[to]; taken {
		return fmt.Errorf("%s: already exists", to)
	}
	files[to] = data
	delete(files, from)
	log.move(from, to)
	return nil
}

func rewriteRecord(files core.FileMap, p string, fn func(*core.Credential)) error {
	data, ok := files[p]
	if !ok {
		return fmt.Errorf("%s: not found", p)
	}
	c, err := core.ParseCredential(data)
	if err != nil {
		return err
	}
	fn(&c)
	out, err := core.MarshalCredential(c)
	if err != nil {
		return err
	}
	files[p] = out
	return nil
}

// renameDuplicateFields keeps the first field of each name and suffixes the
// others with " (2)", " (3)" and so on.
func renameDuplicateFields(c *core.Credential) {
	used := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		used[f.Name] = true
	}
	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		if !seen[f.Name] {
			seen[f.Name] = true
			continue
		}
		for n := 2; ; n++ {
			candidate := fmt.Sprintf("%s (%d)", f.Name, n)
			if !used[candidate] {
				c.Fields[i].Name = candidate
				used[candidate] = true
				seen[candidate] = true
				break
			}
		}
	}
}

// Package config is the Spec Parser (C5): it turns an INI-style config
// file into a validated set of job.Spec, enforcing spec.md §6's key table
// and §7's error taxonomy. It never touches the Job Table directly —
// Reconcile is only ever called with an already-validated map, so a parse
// failure here can't leave the table partially mutated (spec.md §4.3).
package config

import (
	"github.com/taskmasterd/taskmasterd/internal/job"
	"github.com/taskmasterd/taskmasterd/internal/jobtable"
)

// reservedSectionName is silently dropped per spec.md §6 ("Section name
// \"default\" is reserved").
const reservedSectionName = "default"

// Load reads and validates path, returning one job.Spec per non-reserved
// section. A read failure is ConfigLoad; anything else is ConfigParse,
// BadJobName, or NoJobs.
func Load(path string) (map[string]job.Spec, error) {
	sections, err := parseINIFile(path)
	if err != nil {
		return nil, loadErr(err)
	}
	return decodeSections(sections)
}

func decodeSections(sections []rawSection) (map[string]job.Spec, error) {
	specs := make(map[string]job.Spec, len(sections))
	for _, sec := range sections {
		if sec.name == reservedSectionName {
			continue
		}
		if err := jobtable.ValidateName(sec.name); err != nil {
			return nil, badNameErr(sec.name)
		}
		spec, err := decodeSpec(sec.name, sec.keys)
		if err != nil {
			return nil, err
		}
		specs[sec.name] = spec
	}
	if len(specs) == 0 {
		return nil, noJobsErr()
	}
	return specs, nil
}

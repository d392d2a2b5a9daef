package engine

import "fmt"

// DetectResult is one module's (or prerequisite's) detection outcome.
type DetectResult struct {
	ID          string
	DisplayName string
	Installed   bool
}

// DetectModules evaluates each enabled module's detection rule and reports
// the results. It performs no mutation; a detector I/O error aborts.
func (e *Engine) DetectModules() ([]DetectResult, error) {
	var results []DetectResult
	for i := range e.manifest.Modules {
		mod := &e.manifest.Modules[i]
		if !mod.Enabled {
			continue
		}
		installed, err := e.detector.Detect(e.baseDir, mod.Detect)
		if err != nil {
			return nil, fmt.Errorf("detect module %s: %w", mod.ID, err)
		}
		results = append(results, DetectResult{
			ID:          mod.ID,
			DisplayName: mod.DisplayName,
			Installed:   installed,
		})
	}
	return results, nil
}

// DetectPrerequisites evaluates each enabled prerequisite's detection rule.
// Used by the doctor command; performs no mutation.
func (e *Engine) DetectPrerequisites() ([]DetectResult, error) {
	var results []DetectResult
	for i := range e.manifest.Prerequisites {
		pre := &e.manifest.Prerequisites[i]
		if !pre.Enabled {
			continue
		}
		installed, err := e.detector.Detect(e.baseDir, pre.Detect)
		if err != nil {
			return nil, fmt.Errorf("detect prerequisite %s: %w", pre.ID, err)
		}
		results = append(results, DetectResult{
			ID:          pre.ID,
			DisplayName: pre.DisplayName,
			Installed:   installed,
		})
	}
	return results, nil
}

// StateFile exposes the state document path for callers that report on it.
func (e *Engine) StateFile() string {
	return e.paths.StateFile()
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/awgseq/internal/service"
)

var validSteps = map[rune]string{
	'a': "assemble",
	'c': "commit",
	'w': "write preview",
}

func validatePipeline() error {
	if pipeline == "" {
		return nil
	}

	for _, step := range strings.ToLower(pipeline) {
		if _, ok := validSteps[step]; !ok {
			return fmt.Errorf("invalid pipeline step: '%c' (valid: a=assemble, c=commit, w=write preview)", step)
		}
	}
	return nil
}

// newService creates a service for the loaded profile, writing to the
// backend selected in its hardware section.
func newService() (service.Service, error) {
	svc, err := service.New(cfg, cfgFile, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, nil
}

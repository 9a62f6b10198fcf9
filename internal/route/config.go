package route

import (
	"fmt"
	"strings"

	"letterbox-gateway/internal/config"
)

// NewTable builds the route table from config, falling back to DefaultTable
// when no [[routes]] are configured.
func NewTable(cfg *config.Config) (Table, error) {
	tb := DefaultTable()
	if len(cfg.Routes) > 0 {
		tb = make(Table, 0, len(cfg.Routes))
		for _, rc := range cfg.Routes {
			mode, err := ParseBodyMode(rc.BodyMode)
			if err != nil {
				return nil, fmt.Errorf("route %q: %w", rc.Name, err)
			}
			methods := make([]string, 0, len(rc.Methods))
			for _, m := range rc.Methods {
				methods = append(methods, strings.ToUpper(m))
			}
			tb = append(tb, Template{
				Name:           rc.Name,
				Prefix:         rc.Prefix,
				UpstreamPath:   rc.UpstreamPath,
				Methods:        methods,
				BodyMode:       mode,
				Wildcard:       rc.Wildcard,
				FailureMessage: rc.FailureMessage,
			})
		}
	}
	if err := tb.Validate(); err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}
	return tb, nil
}

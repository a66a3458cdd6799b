package parser

import "github.com/okian/ffnsync/pkg/logger"

// Option configures a Parser.
type Option func(*Parser)

// WithLogger enables debug tracing of dropped rows.
func WithLogger(l logger.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

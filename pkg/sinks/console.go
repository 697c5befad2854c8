package sinks

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"eventd/pkg/events"
	"eventd/pkg/props"
)

// Console logs every event it receives. It is technical by default, which
// makes it the usual debug sink that satisfies the dispatcher's technical
// sink requirement.
type Console struct {
	Base
	logger zerolog.Logger
	pretty bool
}

// ConsoleName is the default name of a Console sink.
var ConsoleName = events.SinkNameFor((*Console)(nil))

// NewConsole returns a console sink writing to logger. Pretty indents the
// properties JSON; otherwise it is embedded as a raw JSON field.
func NewConsole(logger zerolog.Logger, pretty bool, opts Options) *Console {
	c := &Console{logger: logger, pretty: pretty}
	opts.apply(&c.Base, ConsoleName, true)
	return c
}

func (c *Console) Send(name events.Name, properties props.Properties) {
	ev := c.logger.Info().Str("sink", string(c.Name())).Str("event", string(name))
	if c.pretty {
		if b, err := json.MarshalIndent(properties, "", "  "); err == nil {
			ev.Str("properties", string(b)).Msg("event")
			return
		}
	}
	if b, err := json.Marshal(properties); err == nil {
		ev.RawJSON("properties", b).Msg("event")
		return
	}
	ev.Interface("properties", properties.Interface()).Msg("event")
}

func (c *Console) SetUserID(id *string) {
	v := "nil"
	if id != nil {
		v = *id
	}
	c.logger.Info().Str("sink", string(c.Name())).Str("user_id", v).Msg("user id")
}

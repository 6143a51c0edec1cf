// Package component defines the fixed set of service-component identities.
// An identity scopes one handler registry and one interceptor chain: the same
// message name can be handled differently by a command handler and an event
// listener, so every dispatcher is keyed by identity.
package component

import (
	"fmt"
	"strings"
)

// Identity names the role a deployable unit plays in the pipeline.
type Identity string

const (
	CommandAPI        Identity = "COMMAND_API"
	CommandController Identity = "COMMAND_CONTROLLER"
	CommandHandler    Identity = "COMMAND_HANDLER"
	EventListener     Identity = "EVENT_LISTENER"
	EventProcessor    Identity = "EVENT_PROCESSOR"
	QueryAPI          Identity = "QUERY_API"
	QueryController   Identity = "QUERY_CONTROLLER"
	QueryView         Identity = "QUERY_VIEW"
)

// All lists every identity in pipeline order, commands first.
func All() []Identity {
	return []Identity{
		CommandAPI,
		CommandController,
		CommandHandler,
		EventListener,
		EventProcessor,
		QueryAPI,
		QueryController,
		QueryView,
	}
}

// Parse maps a canonical identity name to its Identity. It accepts any case
// and returns an error for names outside the fixed set.
func Parse(s string) (Identity, error) {
	id := Identity(strings.ToUpper(strings.TrimSpace(s)))
	switch id {
	case CommandAPI, CommandController, CommandHandler,
		EventListener, EventProcessor,
		QueryAPI, QueryController, QueryView:
		return id, nil
	}
	return "", fmt.Errorf("relay: unknown component identity %q", s)
}

func (i Identity) String() string {
	return string(i)
}

// Valid reports whether the identity is one of the fixed set. Unlike Parse it
// is case-exact: registries key on the canonical uppercase form, so a
// lowercase identity must be rejected here rather than fail lookup later.
func (i Identity) Valid() bool {
	switch i {
	case CommandAPI, CommandController, CommandHandler,
		EventListener, EventProcessor,
		QueryAPI, QueryController, QueryView:
		return true
	}
	return false
}

// IsCommand reports whether the identity handles commands.
func (i Identity) IsCommand() bool {
	return i == CommandAPI || i == CommandController || i == CommandHandler
}

// IsEvent reports whether the identity consumes events. Event identities get
// the buffering and filtering stages appended to their chains.
func (i Identity) IsEvent() bool {
	return i == EventListener || i == EventProcessor
}

// IsQuery reports whether the identity serves queries.
func (i Identity) IsQuery() bool {
	return i == QueryAPI || i == QueryController || i == QueryView
}

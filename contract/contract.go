//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"match-chat/domain"
	"match-chat/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	return typeName(w)
}

func GetSinkName(s EventSink) string {
	if s == nil {
		return "NilSink"
	}
	return typeName(s)
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the process-local presence and room table.
type IRegistry interface {
	RegisterConnection(userID, connID string, sink EventSink) bool
	UnregisterConnection(userID, connID string) bool
	ConnectionsOf(userID string) []string
	IsConnected(userID string) bool
	Join(connID, chatID string) bool
	Leave(connID, chatID string)
	IsInRoom(connID, chatID string) bool
	GetSinksForRoom(chatID, excludedUser string) []EventSink
	GetSinksForUsers(userIDs ...string) []EventSink
}

// EventPublisher hands an event to the fanout.
type EventPublisher interface {
	Publish(evt event.DomainEvent)
}

// CommandDispatcher routes a command to the ordered path of its chat.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd domain.Command) error
}

type IOrchestrator interface {
	EventPublisher
	CommandDispatcher
	RegisterSinks(sink ...EventSink)
	Start(ctx context.Context) error
	Stop()
}

// RecommendationRequest is what the external provider receives.
type RecommendationRequest struct {
	UserID     string   `json:"userId"`
	ExcludeIDs []string `json:"excludeIds"`
	Limit      int      `json:"limit"`
}

type Candidate struct {
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
}

// RecommendationProvider returns ranked candidate ids. It may fail or time out.
type RecommendationProvider interface {
	Recommend(ctx context.Context, req RecommendationRequest) ([]Candidate, error)
}

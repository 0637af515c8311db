// Package service implements the business logic layer for the Rotativos API.
//
// The service package runs rotation requests end to end: it builds the
// validation snapshot, asks the rules engine for a verdict, stores the
// rotation, queues it or promotes the head of a waiting list, and keeps
// the member's season balance in step.
//
// # Service Pattern
//
// All services follow a consistent pattern:
//
//   - Constructor function (NewXxxService) accepts a config struct with repository dependencies
//   - Methods implement business operations with proper validation
//   - Errors are returned as sentinel errors or wrapped errors for context
//   - Context is passed through for cancellation and request-scoped values
//
// # Repository Interfaces
//
// Services define their own repository interfaces, allowing:
//
//   - Easy mocking for unit tests
//   - Decoupling from specific database implementations
//   - Clear contracts for data access requirements
//
// # Concurrency
//
// RotativoService and WaitingListService share one KeyedLock. Every change
// to an event's seats or queue holds the event key, and every balance
// write holds the member/season key, so a promotion never races the
// request that freed the seat.
//
// # Error Handling
//
// Services return domain-specific errors defined as package-level variables:
//
//	var (
//	    ErrRotativoNotFound = errors.New("rotativo not found")
//	    ErrAlreadyQueued    = errors.New("member is already on the waiting list for this event")
//	)
//
// # Example Usage
//
//	svc := NewRotativoService(RotativoServiceConfig{
//	    RotativoRepo: rotativoRepository,
//	    Contexts:     contextBuilder,
//	    Validator:    engine,
//	    Queue:        waitingListService,
//	    Locks:        locks,
//	})
//	outcome, err := svc.Request(ctx, &model.RotativoRequest{UserID: userID, EventID: eventID})
package service

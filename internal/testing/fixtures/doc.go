// Package fixtures provides test data factories for the rotativos API.
//
// The fixtures package contains factory functions for creating test data
// with sensible defaults and optional customization.
//
// # Factory Pattern
//
// Create a factory with a database connection:
//
//	f := fixtures.New(testDB)
//
// # Creating Test Data
//
// Factory methods create the scheduling records the service reads:
//
//	season := f.CreateSeason(t)
//	title := f.CreateTitle(t, season, fixtures.WithCupoDefault(2))
//	event := f.CreateEvent(t, season, title)
//	f.FillEvent(t, event, 2) // two approved rotations
//
// # Customization
//
// Use option functions for customization:
//
//	event := f.CreateEvent(t, season, title, fixtures.WithEventType(model.EventTypeFuncion))
//
// # Cleanup
//
// Test data is cleaned up when the test database is closed.
package fixtures

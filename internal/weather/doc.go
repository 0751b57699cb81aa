// Package weather defines the core domain types and collaborator interfaces
// shared by the scrape pipeline: raw pages, extracted snapshots, per-location
// coordinator state, and the projected entities handed to publishers.
package weather

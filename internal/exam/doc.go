// Package exam models the published exam-evaluation status of the BAMF
// Abschlussprüfung page.
//
// It extracts the "Prüfungsdatum" status date from page text, holds the
// persisted monitoring State, and evaluates the notification rules that move a
// State between the not-yet-found, found-and-monitoring and terminated phases.
// Everything here is pure; fetching, persistence and delivery live elsewhere.
package exam

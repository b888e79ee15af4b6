// Package notifier provides notification interfaces and implementations for
// exam date updates.
//
// The notifier package composes the plain-text messages for each rule that
// fires and delivers them by email over authenticated SMTP submission with
// mandatory STARTTLS. A dry-run notifier prints messages instead of sending.
package notifier

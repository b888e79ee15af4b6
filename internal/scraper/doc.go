// Package scraper provides HTTP fetching and HTML-to-text conversion for the
// BAMF Abschlussprüfung page.
//
// The scraper fetches the public page with a browser-like header set and a
// bounded, fixed-delay retry policy, rejects empty or binary responses, and
// turns the HTML into plain text so the exam package can look for the status
// sentence without caring about markup.
package scraper

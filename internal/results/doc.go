// Package results turns experiment result payloads into typed views.
//
// The backend tags every result with a "test" field. Decode maps each known
// value (ttest, anova, linear_regression, logistic_regression, logical, chi2)
// to its own struct; anything else becomes Unsupported, which renders the
// "Unsupported test type" placeholder instead of failing.
//
// Every view yields a Section, a presentation-neutral title plus labelled
// fields and an optional table, which the CLI prints with WriteText and the
// report package turns into Markdown.
package results

// Package analysis implements the Gherkin Analyzer and Diagnostics Engine:
// cursor classification over a partial buffer, and the preprocess → parse
// → match → diagnostics pipeline run over a complete one.
package analysis

package a

// This comment is deliberately written so that it runs past the limit. // want "Comment too long"

//go:generate echo this directive line is allowed to be as long as it wants to be without a report

var A = 1

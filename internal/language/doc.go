// Package language normalizes language codes and answers whether a code is
// in the closed set of languages the alignment backend supports.
//
// Codes reported by detectors arrive in many shapes ("es", "ES", "es-MX",
// "spa", "spanish"); Normalize reduces them to the short base code used for
// queue routing and library sidecars. English is distinguished because word
// alignment for it runs on a dedicated queue against the original mix.
package language

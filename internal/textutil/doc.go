// Package textutil turns free-form titles into filesystem and header safe
// tokens.
//
// Accents are folded before filtering so "Café Lisboa" becomes
// "cafe-lisboa" rather than losing letters.
package textutil

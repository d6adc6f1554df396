// Package digester computes git blob object ids so the
// publisher can confirm the hosting API stored exactly the
// bytes it was sent.
package digester

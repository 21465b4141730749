// Package view implements the menu viewport a script can draw every tick.
//
// A Viewport holds a stack of menus. The top menu is the one drawn and the
// one that receives navigation: activate, back, change item (left/right)
// and change selection (up/down). Draw renders the top menu with lipgloss
// into a frame string that the host displays between driver steps.
package view

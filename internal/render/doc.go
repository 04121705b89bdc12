// Package render turns control API results into section content: the header
// embed, the live gamestate embed and the two map rotation views.
package render

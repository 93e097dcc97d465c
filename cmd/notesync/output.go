package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/notesync"
)

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printNotes(w io.Writer, notes []notesync.Note, asJSON bool) error {
	if asJSON {
		if notes == nil {
			notes = []notesync.Note{}
		}
		return writeJSON(w, notes)
	}
	for _, n := range notes {
		pin := " "
		if n.IsPinned {
			pin = "*"
		}
		folder := ""
		if n.FolderID != nil {
			folder = " [" + *n.FolderID + "]"
		}
		fmt.Fprintf(w, "%s %s - %s%s\n", pin, n.ID, n.Title, folder)
	}
	return nil
}

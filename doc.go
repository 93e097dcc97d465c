// Package notesync is the composition root for the notesync storage engine.
//
// It keeps a set of notes, folders and user settings consistent across three
// interchangeable backends: device key-value storage, a remote cloud service
// reached through remote procedure calls, and an embedded SQLite database.
// Which backend serves a call is decided per call from the runtime mode, the
// session and connectivity.
//
// Features:
//
//   - **Optimistic mutations**: the in-memory store changes first and is
//     restored if the durable write fails.
//   - **Routing with fallback**: cloud calls that fail are served from device
//     storage.
//   - **Durable retry queue**: remote writes survive transient failures and
//     restarts.
//   - **One-shot migration**: device data is copied to the cloud the first
//     time a principal signs in.
//
// Usage:
//
//	engine, err := notesync.New(
//		notesync.WithDataDir(dir),
//		notesync.WithCloudURL("https://notes.example.com"),
//		notesync.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	if err := engine.Start(ctx); err != nil {
//		return err
//	}
//	defer engine.Stop()
//
//	note, err := engine.Service().CreateNote(ctx, notesync.NoteInput{Title: "hello"})
package notesync

// Package storage provides the persistent user roster behind the relay.
//
// The roster is a best-effort directory of everyone who has ever
// registered: their latest avatar, status and when they were last seen.
// Live presence truth stays in memory; the server keeps running when the
// roster database cannot be opened.
//
// Usage:
//
//	store, err := storage.NewSQLiteStore("./roster.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.SaveUser(&storage.UserRecord{Username: "alice", Status: "online"})
//
// The Store interface allows alternative backends (MySQL) while keeping
// API compatibility.
package storage

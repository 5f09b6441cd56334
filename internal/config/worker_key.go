package config

type WorkerKeyStruct struct {
	PersistTranscriptsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistTranscriptsQueue: "persist_transcripts_queue",
}

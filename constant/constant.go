package constant

type AudioStatus string

const (
	AudioStatusUploading AudioStatus = "UPLOADING"
	AudioStatusUploaded  AudioStatus = "UPLOADED"
	AudioStatusFailed    AudioStatus = "FAILED"
)

func (s AudioStatus) String() string {
	return string(s)
}

type StorageDriver string

const (
	StorageDriverLocal StorageDriver = "local"
	StorageDriverMinio StorageDriver = "minio"
)

type AuthMode string

const (
	AuthModeStatic AuthMode = "static"
	AuthModeHeader AuthMode = "header"
)

const (
	RoutingKeyAudioUploaded = "audio.uploaded"
	RoutingKeyAudioAnalyzed = "audio.analyzed"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

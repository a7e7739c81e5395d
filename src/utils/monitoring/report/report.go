package report

type Report struct {
	Run            *RunReport            `json:"run,omitempty"`
	Uploader       *UploaderReport       `json:"uploader,omitempty"`
	Verifier       *VerifierReport       `json:"verifier,omitempty"`
	RedisPublisher *RedisPublisherReport `json:"redis_publisher,omitempty"`
}

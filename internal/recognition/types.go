package recognition

// UnknownProbability is reported on every categorical distribution.
const UnknownProbability float32 = 0.1

// Image describes the image attached to a recognize request. Only Width and
// Height are used; pixel data is carried but never inspected.
type Image struct {
	Height   uint32 `json:"height"`
	Width    uint32 `json:"width"`
	Encoding string `json:"encoding,omitempty"`
	Step     uint32 `json:"step,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// RecognizeRequest is the input of a Recognize call.
type RecognizeRequest struct {
	Image *Image `json:"image"`
}

// ROI is a rectangular region of an image.
type ROI struct {
	XOffset uint32 `json:"x"`
	YOffset uint32 `json:"y"`
	Width   uint32 `json:"width"`
	Height  uint32 `json:"height"`
}

type CategoryProbability struct {
	Label       string  `json:"label"`
	Probability float32 `json:"probability"`
}

// CategoricalDistribution pairs each label with a probability. The values
// are not normalized.
type CategoricalDistribution struct {
	UnknownProbability float32               `json:"unknown_probability"`
	Probabilities      []CategoryProbability `json:"probabilities"`
}

// Recognition is a single recognized region with its label distribution.
type Recognition struct {
	ROI                     ROI                     `json:"roi"`
	CategoricalDistribution CategoricalDistribution `json:"categorical_distribution"`
}

// RecognizeResponse is the output of a Recognize call.
type RecognizeResponse struct {
	Recognitions []Recognition `json:"recognitions"`
}

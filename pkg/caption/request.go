package caption

import "image"

// NewRequest selects the request shape from the prompt. A non-empty prompt
// yields a guided request carrying both image and prompt; otherwise the
// request carries only the image.
func NewRequest(img *image.RGBA, prompt string) *Request {
	req := &Request{
		Image:    img,
		Decoding: fixedDecoding(),
	}
	if prompt != "" {
		req.Prompt = prompt
	}
	return req
}

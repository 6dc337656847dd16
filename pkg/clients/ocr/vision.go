package ocr

import (
	"context"
	"fmt"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// MaxVisionBytes is the inline image size accepted by Cloud Vision.
const MaxVisionBytes = 20 * 1024 * 1024

// VisionExtractor runs DOCUMENT_TEXT_DETECTION on images through Google Cloud Vision.
type VisionExtractor struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionExtractor builds a Vision client. Credentials come from GOOGLE_CREDENTIALS (inline
// JSON), then GOOGLE_APPLICATION_CREDENTIALS (file path), then application default credentials.
func NewVisionExtractor(ctx context.Context) (*VisionExtractor, error) {
	const op = "vision connect"

	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, NewTransportError(op, 0, err)
	}
	return &VisionExtractor{client: client}, nil
}

// ExtractText implements Extractor.
func (v *VisionExtractor) ExtractText(ctx context.Context, data []byte, _ string) (string, error) {
	const op = "vision extract"

	if len(data) == 0 {
		return "", ErrEmptyInput
	}
	if len(data) > MaxVisionBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrInputTooLarge, len(data), MaxVisionBytes)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", NewTransportError(op, 0, err)
	}
	return visionText(op, resp)
}

func visionText(op string, resp *visionpb.BatchAnnotateImagesResponse) (string, error) {
	if resp == nil || len(resp.GetResponses()) == 0 {
		return "", &FormatError{Op: op, Detail: "no annotation in response"}
	}

	first := resp.GetResponses()[0]
	if status := first.GetError(); status != nil && status.GetMessage() != "" {
		return "", NewTransportError(op, 0, fmt.Errorf("vision api error: %s", status.GetMessage()))
	}
	if first.GetFullTextAnnotation() == nil {
		return "", &FormatError{Op: op, Detail: "response carries no full text annotation"}
	}
	return first.GetFullTextAnnotation().GetText(), nil
}

// Close releases the underlying client.
func (v *VisionExtractor) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

var _ Extractor = (*VisionExtractor)(nil)

package media

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/rummage/profilesync/internal/models"
)

type SafeSearchResult struct {
	Adult    string
	Violence string
	Racy     string
	Spoof    string
	Medical  string
}

func isLikelyOrHigher(l string) bool {
	return l == "LIKELY" || l == "VERY_LIKELY"
}

func (r *SafeSearchResult) IsUnsafe() bool {
	return isLikelyOrHigher(r.Adult) || isLikelyOrHigher(r.Violence) || isLikelyOrHigher(r.Racy)
}

// SafeSearchScreener runs Vision SAFE_SEARCH_DETECTION on image bytes before upload.
type SafeSearchScreener struct {
	svc *vision.Service
}

func NewSafeSearchScreener(ctx context.Context, opts ...option.ClientOption) (*SafeSearchScreener, error) {
	opts = append([]option.ClientOption{option.WithScopes(vision.CloudPlatformScope)}, opts...)
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &SafeSearchScreener{svc: svc}, nil
}

func (s *SafeSearchScreener) Detect(ctx context.Context, data []byte) (*SafeSearchResult, error) {
	req := &vision.AnnotateImageRequest{
		Image: &vision.Image{Content: base64.StdEncoding.EncodeToString(data)},
		Features: []*vision.Feature{
			{Type: "SAFE_SEARCH_DETECTION"},
		},
	}

	resp, err := s.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{req},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 {
		return &SafeSearchResult{}, nil
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("safe search: %s", r.Error.Message)
	}
	ss := r.SafeSearchAnnotation
	if ss == nil {
		return &SafeSearchResult{}, nil
	}

	return &SafeSearchResult{
		Adult:    ss.Adult,
		Violence: ss.Violence,
		Racy:     ss.Racy,
		Spoof:    ss.Spoof,
		Medical:  ss.Medical,
	}, nil
}

// Screen returns ErrUnsafeImage when any of adult, violence or racy is LIKELY or above.
func (s *SafeSearchScreener) Screen(ctx context.Context, ref *models.ImageRef) error {
	result, err := s.Detect(ctx, ref.Data)
	if err != nil {
		return err
	}
	if result.IsUnsafe() {
		return fmt.Errorf("%w: adult=%s violence=%s racy=%s", ErrUnsafeImage, result.Adult, result.Violence, result.Racy)
	}
	return nil
}

package image

import (
	"errors"
	"fmt"

	"github.com/distribution/reference"
)

// PreviousTag is the tag a running image is copied to before an update
const PreviousTag = "previous"

var (
	// ErrInvalidRepository is returned when a repository carries a tag or digest or cannot be parsed
	ErrInvalidRepository = errors.New("invalid repository")

	// ErrInvalidTag is returned when a tag does not match the reference grammar
	ErrInvalidTag = errors.New("invalid tag")
)

// Validate checks that repository is a bare repository name and tag is a valid tag
func Validate(repository, tag string) error {
	named, err := reference.ParseNormalizedNamed(repository)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidRepository, repository, err)
	}
	if !reference.IsNameOnly(named) {
		return fmt.Errorf("%w %q: must not contain a tag or digest", ErrInvalidRepository, repository)
	}
	if tag == PreviousTag {
		return fmt.Errorf("%w %q: reserved for rollback images", ErrInvalidTag, tag)
	}
	if _, err := reference.WithTag(named, tag); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidTag, tag, err)
	}
	return nil
}

// Ref joins repository and tag into an image reference
func Ref(repository, tag string) string {
	return repository + ":" + tag
}

// Previous returns the rollback reference for repository
func Previous(repository string) string {
	return Ref(repository, PreviousTag)
}

// SameRepository reports whether image belongs to repository. The image may
// carry a tag and/or digest; both sides are normalized, so "nginx" and
// "docker.io/library/nginx:1.27@sha256:..." match.
func SameRepository(image, repository string) bool {
	imgNamed, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return false
	}
	repoNamed, err := reference.ParseNormalizedNamed(repository)
	if err != nil {
		return false
	}
	return reference.TrimNamed(imgNamed).Name() == reference.TrimNamed(repoNamed).Name()
}

// TaggedRef returns the name:tag form of image with any digest removed.
// Swarm pins service images by digest; local image stores look them up by tag.
// It reports false when image carries no tag or cannot be parsed.
func TaggedRef(image string) (string, bool) {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "", false
	}
	tagged, ok := named.(reference.Tagged)
	if !ok {
		return "", false
	}
	withTag, err := reference.WithTag(reference.TrimNamed(named), tagged.Tag())
	if err != nil {
		return "", false
	}
	return reference.FamiliarString(withTag), true
}

// Qualify expands a familiar reference to its fully qualified form
// ("nginx" becomes "docker.io/library/nginx:latest"). Stores that do not
// apply docker's normalization, such as containerd, need this form.
func Qualify(ref string) string {
	named, err := reference.ParseDockerRef(ref)
	if err != nil {
		return ref
	}
	return named.String()
}

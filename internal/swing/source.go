package swing

import "strings"

// captureMarkers are path fragments left behind by camera capture flows:
// app temp and cache directories, camera-app and image-picker scratch dirs.
// The list is a heuristic tied to how capture tools name their temp files.
var captureMarkers = []string{
	"/tmp/",
	"/cache/",
	"/Caches/",
	"Camera/",
	"ImagePicker/",
	"ExponentExperienceData",
	"DCIM/Camera",
}

// ClassifySource guesses whether a video was just recorded or picked from
// the library, from its path alone. Matching is case-sensitive. Paths that
// match no marker are treated as gallery picks; that is a policy default,
// not something the path proves.
func ClassifySource(path string) VideoSource {
	for _, marker := range captureMarkers {
		if strings.Contains(path, marker) {
			return SourceCameraRecorded
		}
	}
	return SourceGallerySelected
}

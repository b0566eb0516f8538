package models

import "strings"

// NumCOCOClasses is the size of the label set the detector is trained on.
const NumCOCOClasses = 80

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// cocoNames is the 80-class COCO taxonomy in YOLO order (no background class).
var cocoNames = [NumCOCOClasses]string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog",
	"horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich",
	"orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote",
	"keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// COCOClasses is the label set indexed by class id.
var COCOClasses = func() []OutputClass {
	classes := make([]OutputClass, len(cocoNames))
	for i, name := range cocoNames {
		classes[i] = OutputClass{Index: i, Name: name}
	}
	return classes
}()

// ClassName returns the label for a class id, or "" if the id is out of range.
func ClassName(idx int) string {
	if idx < 0 || idx >= len(cocoNames) {
		return ""
	}
	return cocoNames[idx]
}

// ClassIndex returns the class id for a label. Matching ignores case and surrounding spaces.
func ClassIndex(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range cocoNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

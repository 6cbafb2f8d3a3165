package swing

import "time"

var tips = []string{
	"Keep your grip pressure light. A four out of ten is plenty.",
	"Check your ball position: centered for wedges, inside the lead heel for driver.",
	"Turn your shoulders fully on the backswing before your arms lift.",
	"Start the downswing from the ground up. Shift pressure to your lead foot first.",
	"Keep your head steady until well after impact.",
	"Aim the clubface first, then set your feet to it.",
	"Finish in balance and hold the pose for three seconds.",
	"Make practice swings with a purpose. Feel the move you want to repeat.",
	"Tempo beats power. Count one-two on the backswing, three on the downswing.",
	"Hit down on irons. The divot should start after the ball.",
	"Keep your trail elbow close to your side on the way down.",
	"Let the chest face the target at the finish.",
	"On short putts, keep your eyes over the ball and the lower body still.",
	"Film from down the line and face on. Both angles tell a different story.",
}

// TipFor returns the tip for t's day of the year. The same date always
// yields the same tip.
func TipFor(t time.Time) string {
	return tips[(t.YearDay()-1)%len(tips)]
}

package corpus

// defaultDocuments is the compiled-in knowledge set used when no corpus
// directory is configured. It keeps retrieval non-empty out of the box.
func defaultDocuments() []Document {
	return []Document{
		{
			SourceTag: "grounding",
			Text: `Grounding techniques help interrupt spiraling thoughts by bringing attention back to the present moment.

The 5-4-3-2-1 exercise works through the senses: name five things you can see, four you can touch, three you can hear, two you can smell, and one you can taste.

Slow breathing with a longer exhale than inhale signals the nervous system to settle. A common pattern is four counts in, six counts out, repeated for a few minutes.`,
		},
		{
			SourceTag: "anxiety",
			Text: `Anxiety is a normal response to perceived threat. It becomes a problem when the alarm fires without a matching danger or refuses to switch off.

Naming the feeling precisely reduces its intensity. "I notice I am feeling anxious about tomorrow's meeting" creates distance that "I am anxious" does not.

Avoidance feeds anxiety over time. Gentle, repeated exposure to the feared situation, at a pace that feels manageable, is the most reliable way to shrink it.`,
		},
		{
			SourceTag: "sleep",
			Text: `Consistent wake times anchor the circadian rhythm more strongly than consistent bedtimes.

Screens late at night delay sleep both through light exposure and through engagement. A wind-down routine of thirty minutes without demanding input improves sleep onset.

Lying awake longer than twenty minutes builds an association between bed and wakefulness. Getting up briefly and returning when drowsy breaks that loop.`,
		},
		{
			SourceTag: "support",
			Text: `A supportive conversation listens first. Reflecting back what was heard, without rushing to fix, helps a person feel understood.

If someone describes a crisis or thoughts of self-harm, the right response is to encourage contacting local emergency services or a crisis hotline immediately. Peer conversation is not a substitute for professional care.`,
		},
	}
}

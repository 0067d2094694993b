/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package imagegen

import (
	"fmt"
	"strings"

	"github.com/Seednode/promptbox/internal/game"
)

var promptBook = map[string][]string{
	"animals": {
		"a red fox curled up asleep in fresh snow",
		"an owl perched on a mossy branch at dusk",
		"a herd of elephants crossing a dusty river",
		"a chameleon changing colors on a bright leaf",
	},
	"architecture": {
		"a glass skyscraper reflecting a stormy sky",
		"a crumbling stone cathedral overgrown with ivy",
		"a row of colorful houses along a canal",
	},
	"fantasy": {
		"a dragon sleeping on a pile of gold coins",
		"a wizard tower floating above the clouds",
		"an enchanted forest with glowing mushrooms",
	},
	"food": {
		"a stack of pancakes dripping with maple syrup",
		"a steaming bowl of ramen with a soft boiled egg",
		"a picnic basket full of fruit and bread",
	},
	"landscapes": {
		"a mountain lake at sunrise with mist on the water",
		"rolling green hills under a rainbow",
		"a desert canyon glowing orange at sunset",
	},
	"objects": {
		"an old brass telescope on a wooden desk",
		"a vintage typewriter with a blank sheet of paper",
		"a pair of muddy boots beside a front door",
	},
	"people": {
		"a street musician playing violin in the rain",
		"a chef tossing pizza dough in a busy kitchen",
		"an astronaut tying their shoelaces",
	},
	"space": {
		"a ringed planet rising over an alien desert",
		"an astronaut floating beside a space station",
		"a spiral galaxy seen through a telescope",
	},
	"sports": {
		"a surfer riding a giant wave",
		"a basketball swishing through a net at night",
		"a cyclist racing down a mountain road",
	},
	"underwater": {
		"a sea turtle gliding over a coral reef",
		"a sunken pirate ship covered in seaweed",
		"a glowing jellyfish in the deep ocean",
	},
	"vehicles": {
		"a red vintage car parked by the sea",
		"a steam train crossing a stone bridge",
		"a hot air balloon drifting over fields",
	},
}

var customTemplates = []string{
	"a detailed illustration of %s",
	"a colorful painting of %s",
	"a photograph of %s in golden hour light",
}

// PromptFor picks an original prompt for a category. Categories outside
// the book are wrapped in a generic template.
func PromptFor(rnd game.Rand, category string) string {
	category = strings.ToLower(strings.TrimSpace(category))

	if prompts, ok := promptBook[category]; ok {
		return prompts[rnd.IntN(len(prompts))]
	}

	if category == "" {
		category = "something surprising"
	}

	return fmt.Sprintf(customTemplates[rnd.IntN(len(customTemplates))], category)
}

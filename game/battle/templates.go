package battle

import "sort"

// Static roster templates. The original data lives in database tables in
// larger deployments; a built-in table keeps the battle package usable
// without a DB.

var heroTemplates = map[int]PartyConfig{
	1: {HeroID: 1, Name: "Harutoki", Stats: Stats{MaxHP: 320, Attack: 28, Defense: 18, Speed: 30}, Skills: []int{1, 3}},
	2: {HeroID: 2, Name: "Mikoto", Stats: Stats{MaxHP: 260, Attack: 34, Defense: 12, Speed: 24}, Skills: []int{2}},
	3: {HeroID: 3, Name: "Renga", Stats: Stats{MaxHP: 420, Attack: 22, Defense: 26, Speed: 14}, Skills: []int{3}},
}

var monsterSpecies = map[int]MonsterConfig{
	101: {SpeciesID: 101, Name: "Slime", Stats: Stats{MaxHP: 140, Attack: 16, Defense: 8, Speed: 12}},
	102: {SpeciesID: 102, Name: "Dire Wolf", Stats: Stats{MaxHP: 200, Attack: 26, Defense: 10, Speed: 28}, Skills: []int{1}},
	103: {SpeciesID: 103, Name: "Ogre", Stats: Stats{MaxHP: 380, Attack: 36, Defense: 20, Speed: 10}, Skills: []int{4}},
}

// HeroTemplate returns the party template for a hero ID.
func HeroTemplate(heroID int) (PartyConfig, bool) {
	t, ok := heroTemplates[heroID]
	return t, ok
}

// MonsterTemplate returns the species template for a monster species ID.
func MonsterTemplate(speciesID int) (MonsterConfig, bool) {
	t, ok := monsterSpecies[speciesID]
	return t, ok
}

// HeroIDs lists all defined hero IDs, ascending.
func HeroIDs() []int {
	return sortedKeys(heroTemplates)
}

// MonsterIDs lists all defined species IDs, ascending.
func MonsterIDs() []int {
	return sortedKeys(monsterSpecies)
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

package ingest

import "github.com/hubenschmidt/go-movienight/catalog"

// SeedItems is a small fixed catalog used when the upstream API cannot be
// reached, or to bootstrap a development store.
func SeedItems() []catalog.Item {
	return []catalog.Item{
		{
			Title:       "The Matrix",
			Description: "A computer hacker learns that reality as he knows it is actually a simulation, and he must fight to free humanity from the machines.",
		},
		{
			Title:       "Inception",
			Description: "A thief who steals corporate secrets through dream-sharing technology is given the inverse task of planting an idea into the mind of a CEO.",
		},
		{
			Title:       "The Dark Knight",
			Description: "Batman faces his greatest challenge yet when the Joker wreaks havoc on Gotham City, forcing him to confront his own moral boundaries.",
		},
		{
			Title:       "Parasite",
			Description: "A poor family schemes to become employed by a wealthy family and infiltrate their household by posing as unrelated, highly qualified individuals.",
		},
		{
			Title:       "Spirited Away",
			Description: "A young girl becomes trapped in a mysterious spirit world and must find a way to save her parents and return to the human world.",
		},
	}
}

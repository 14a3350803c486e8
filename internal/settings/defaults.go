package settings

import "github.com/pavelanni/mcqdb/internal/model"

// DefaultSubjects returns the taxonomy a fresh settings file starts with.
func DefaultSubjects() map[string]model.Subject {
	return map[string]model.Subject{
		"c": {
			Topics: []string{"arrays", "pointers", "structures", "functions", "file handling",
				"dynamic memory", "strings", "recursion", "linked lists", "sorting algorithms"},
			Classifications: []string{"Fundamentals", "Advanced Concepts", "Applications", "Problem Solving"},
		},
		"python": {
			Topics: []string{"lists", "dictionaries", "functions", "classes", "modules",
				"file handling", "exceptions", "decorators", "generators", "lambda functions"},
			Classifications: []string{"Basics", "Data Structures", "OOP", "Advanced Features"},
		},
		"java": {
			Topics: []string{"classes", "inheritance", "interfaces", "collections", "streams",
				"multithreading", "exceptions", "generics", "annotations", "JDBC"},
			Classifications: []string{"Core Java", "Advanced Java", "Enterprise", "Design Patterns"},
		},
		"cloud computing": {
			Topics: []string{"AWS", "Azure", "GCP", "virtualization", "containers", "kubernetes",
				"serverless", "microservices", "DevOps", "security"},
			Classifications: []string{"Infrastructure", "Services", "Architecture", "Best Practices"},
		},
		"english": {
			Topics: []string{"grammar", "vocabulary", "comprehension", "writing skills", "literature",
				"poetry", "essays", "communication", "idioms", "punctuation"},
			Classifications: []string{"Language Skills", "Literature", "Writing", "Communication"},
		},
		"database": {
			Topics: []string{"SQL", "normalization", "transactions", "indexing", "NoSQL",
				"MongoDB", "joins", "triggers", "stored procedures", "optimization"},
			Classifications: []string{"Relational DB", "NoSQL", "Design", "Performance"},
		},
		"aptitude": {
			Topics: []string{"quantitative", "logical reasoning", "verbal ability", "data interpretation",
				"puzzles", "coding-decoding", "series", "percentages", "probability", "time-work"},
			Classifications: []string{"Numerical", "Logical", "Verbal", "Analytical"},
		},
		"cybersec": {
			Topics: []string{"cryptography", "network security", "web security", "malware", "ethical hacking",
				"forensics", "compliance", "risk management", "authentication", "firewalls"},
			Classifications: []string{"Network Security", "Application Security", "Cryptography", "Governance"},
		},
		"machine learning": {
			Topics: []string{"supervised learning", "unsupervised learning", "neural networks", "deep learning",
				"feature engineering", "model evaluation", "NLP", "computer vision", "reinforcement learning"},
			Classifications: []string{"Algorithms", "Applications", "Theory", "Implementation"},
		},
	}
}

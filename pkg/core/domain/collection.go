package domain

// Collection names a document collection in the store. Names follow the
// pluralised lowercase convention of the site's existing database.
type Collection string

const (
	CollectionVisits       Collection = "visits"
	CollectionUsers        Collection = "users"
	CollectionBlogs        Collection = "blogs"
	CollectionPrograms     Collection = "programs"
	CollectionTeamMembers  Collection = "teammembers"
	CollectionPartners     Collection = "partners"
	CollectionJobs         Collection = "jobs"
	CollectionSubscribers  Collection = "subscribers"
	CollectionApplications Collection = "applications"
)

// ContentCollections are owned by the CMS and only counted here.
var ContentCollections = []Collection{
	CollectionUsers,
	CollectionBlogs,
	CollectionPrograms,
	CollectionTeamMembers,
	CollectionPartners,
	CollectionJobs,
	CollectionSubscribers,
	CollectionApplications,
}

func (c Collection) IsContent() bool {
	for _, known := range ContentCollections {
		if c == known {
			return true
		}
	}
	return false
}

// Document is a schemaless record of a content collection.
type Document map[string]interface{}

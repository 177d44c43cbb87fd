package mongodb

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sandali-perera/library-server/internal/config"
	"github.com/sandali-perera/library-server/internal/storage"
	"github.com/sandali-perera/library-server/internal/types"
)

type Mongo struct {
	Client     *mongo.Client
	users      *mongo.Collection
	categories *mongo.Collection
	books      *mongo.Collection
	readers    *mongo.Collection
	lendings   *mongo.Collection
}

func New(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(cfg.DBName)
	m := &Mongo{
		Client:     client,
		users:      db.Collection("users"),
		categories: db.Collection("categories"),
		books:      db.Collection("books"),
		readers:    db.Collection("readers"),
		lendings:   db.Collection("lendings"),
	}

	if err := m.Init(ctx); err != nil {
		return nil, err
	}

	return m, nil
}

// Init creates the indexes the handlers rely on. Safe to call repeatedly.
func (m *Mongo) Init(ctx context.Context) error {
	_, err := m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = m.lendings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "dueDate", Value: 1}},
	})
	return err
}

func (m *Mongo) Disconnect(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// --- users ---

func (m *Mongo) CreateUser(ctx context.Context, user *types.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := m.users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrDuplicateEmail
		}
		return err
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (m *Mongo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	var user types.User
	err := m.users.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&user)
	if err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (m *Mongo) GetUserByID(ctx context.Context, id primitive.ObjectID) (*types.User, error) {
	var user types.User
	err := m.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (m *Mongo) ListUsers(ctx context.Context) ([]types.User, error) {
	cursor, err := m.users.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	users := []types.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// --- categories ---

func (m *Mongo) CreateCategory(ctx context.Context, category *types.Category) error {
	now := time.Now()
	category.CreatedAt = now
	category.UpdatedAt = now

	res, err := m.categories.InsertOne(ctx, category)
	if err != nil {
		return err
	}
	category.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (m *Mongo) ListCategories(ctx context.Context) ([]types.Category, error) {
	cursor, err := m.categories.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	categories := []types.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (m *Mongo) GetCategoryByID(ctx context.Context, id primitive.ObjectID) (*types.Category, error) {
	var category types.Category
	err := m.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&category)
	if err != nil {
		return nil, mapErr(err)
	}
	return &category, nil
}

func (m *Mongo) UpdateCategory(ctx context.Context, id primitive.ObjectID, patch types.CategoryPatch) (*types.Category, error) {
	set := bson.M{"updatedAt": time.Now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}

	var category types.Category
	err := m.categories.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&category)
	if err != nil {
		return nil, mapErr(err)
	}
	return &category, nil
}

func (m *Mongo) DeleteCategory(ctx context.Context, id primitive.ObjectID) error {
	// Categories referenced by books stay.
	count, err := m.books.CountDocuments(ctx, bson.M{"category": id})
	if err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrConflict
	}

	res, err := m.categories.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- books ---

func (m *Mongo) CreateBook(ctx context.Context, book *types.Book) error {
	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now
	book.AvailableCopies = book.TotalCopies

	res, err := m.books.InsertOne(ctx, book)
	if err != nil {
		return err
	}
	book.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (m *Mongo) ListBooks(ctx context.Context) ([]types.Book, error) {
	cursor, err := m.books.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	books := []types.Book{}
	if err := cursor.All(ctx, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (m *Mongo) GetBookByID(ctx context.Context, id primitive.ObjectID) (*types.Book, error) {
	var book types.Book
	err := m.books.FindOne(ctx, bson.M{"_id": id}).Decode(&book)
	if err != nil {
		return nil, mapErr(err)
	}
	return &book, nil
}

func (m *Mongo) UpdateBook(ctx context.Context, id primitive.ObjectID, patch types.BookPatch) (*types.Book, error) {
	set := bson.M{"updatedAt": time.Now()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Author != nil {
		set["author"] = *patch.Author
	}
	if patch.ISBN != nil {
		set["isbn"] = *patch.ISBN
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}

	if patch.TotalCopies == nil {
		var book types.Book
		err := m.books.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&book)
		if err != nil {
			return nil, mapErr(err)
		}
		return &book, nil
	}

	// Changing totalCopies shifts availableCopies by the same delta. The
	// update is a compare-and-swap against the counts we read, so a lend or
	// return racing with it cannot tear the invariant.
	current, err := m.GetBookByID(ctx, id)
	if err != nil {
		return nil, err
	}

	delta := *patch.TotalCopies - current.TotalCopies
	newAvailable := current.AvailableCopies + delta
	if newAvailable < 0 {
		// More copies are out on loan than the new total allows.
		return nil, storage.ErrConflict
	}

	set["totalCopies"] = *patch.TotalCopies
	set["availableCopies"] = newAvailable

	var book types.Book
	err = m.books.FindOneAndUpdate(ctx,
		bson.M{
			"_id":             id,
			"totalCopies":     current.TotalCopies,
			"availableCopies": current.AvailableCopies,
		},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&book)
	if err == mongo.ErrNoDocuments {
		return nil, storage.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (m *Mongo) DeleteBook(ctx context.Context, id primitive.ObjectID) error {
	open, err := m.lendings.CountDocuments(ctx, bson.M{
		"book":   id,
		"status": bson.M{"$ne": types.StatusReturned},
	})
	if err != nil {
		return err
	}
	if open > 0 {
		return storage.ErrConflict
	}

	res, err := m.books.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- readers ---

func (m *Mongo) CreateReader(ctx context.Context, reader *types.Reader) error {
	now := time.Now()
	reader.CreatedAt = now
	reader.UpdatedAt = now

	res, err := m.readers.InsertOne(ctx, reader)
	if err != nil {
		return err
	}
	reader.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (m *Mongo) ListReaders(ctx context.Context) ([]types.Reader, error) {
	cursor, err := m.readers.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	readers := []types.Reader{}
	if err := cursor.All(ctx, &readers); err != nil {
		return nil, err
	}
	return readers, nil
}

func (m *Mongo) GetReaderByID(ctx context.Context, id primitive.ObjectID) (*types.Reader, error) {
	var reader types.Reader
	err := m.readers.FindOne(ctx, bson.M{"_id": id}).Decode(&reader)
	if err != nil {
		return nil, mapErr(err)
	}
	return &reader, nil
}

func (m *Mongo) UpdateReader(ctx context.Context, id primitive.ObjectID, patch types.ReaderPatch) (*types.Reader, error) {
	set := bson.M{"updatedAt": time.Now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Phone != nil {
		set["phone"] = *patch.Phone
	}

	var reader types.Reader
	err := m.readers.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&reader)
	if err != nil {
		return nil, mapErr(err)
	}
	return &reader, nil
}

func (m *Mongo) DeleteReader(ctx context.Context, id primitive.ObjectID) error {
	open, err := m.lendings.CountDocuments(ctx, bson.M{
		"reader": id,
		"status": bson.M{"$ne": types.StatusReturned},
	})
	if err != nil {
		return err
	}
	if open > 0 {
		return storage.ErrConflict
	}

	res, err := m.readers.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- lendings ---

// LendBook takes a copy before recording the lending. The decrement is a
// conditional update guarded by availableCopies > 0, so two requests racing
// for the last copy cannot both win. If the insert fails the copy is put
// back, which keeps the counter and the records consistent without a
// multi-document transaction.
func (m *Mongo) LendBook(ctx context.Context, lending *types.Lending) error {
	res, err := m.books.UpdateOne(ctx,
		bson.M{"_id": lending.Book, "availableCopies": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"availableCopies": -1}},
	)
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		// Either the book is gone or every copy is out.
		if _, err := m.GetBookByID(ctx, lending.Book); err != nil {
			return err
		}
		return storage.ErrOutOfStock
	}

	insert, err := m.lendings.InsertOne(ctx, lending)
	if err != nil {
		_, _ = m.books.UpdateOne(ctx,
			bson.M{"_id": lending.Book},
			bson.M{"$inc": bson.M{"availableCopies": 1}},
		)
		return err
	}
	lending.ID = insert.InsertedID.(primitive.ObjectID)
	return nil
}

// ReturnLending flips the lending first, guarded by status != RETURNED, which
// is the idempotency boundary: a second return finds nothing to flip and the
// counter is never touched twice. The increment is capped at totalCopies.
func (m *Mongo) ReturnLending(ctx context.Context, id primitive.ObjectID, returnedAt time.Time) (*types.Lending, error) {
	var lending types.Lending
	err := m.lendings.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$ne": types.StatusReturned}},
		bson.M{"$set": bson.M{"status": types.StatusReturned, "returnedAt": returnedAt}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&lending)
	if err == mongo.ErrNoDocuments {
		if _, err := m.GetLendingByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, storage.ErrAlreadyReturned
	}
	if err != nil {
		return nil, err
	}

	_, err = m.books.UpdateOne(ctx,
		bson.M{"_id": lending.Book, "$expr": bson.M{"$lt": bson.A{"$availableCopies", "$totalCopies"}}},
		bson.M{"$inc": bson.M{"availableCopies": 1}},
	)
	if err != nil {
		return nil, err
	}
	return &lending, nil
}

func (m *Mongo) ListLendings(ctx context.Context) ([]types.Lending, error) {
	cursor, err := m.lendings.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "borrowedAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	lendings := []types.Lending{}
	if err := cursor.All(ctx, &lendings); err != nil {
		return nil, err
	}
	if err := m.populateRefs(ctx, lendings); err != nil {
		return nil, err
	}
	return lendings, nil
}

func (m *Mongo) ListOverdueLendings(ctx context.Context, now time.Time) ([]types.Lending, error) {
	cursor, err := m.lendings.Find(ctx, bson.M{
		"status":  bson.M{"$ne": types.StatusReturned},
		"dueDate": bson.M{"$lt": now},
	}, options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}}))
	if err != nil {
		return nil, err
	}
	lendings := []types.Lending{}
	if err := cursor.All(ctx, &lendings); err != nil {
		return nil, err
	}
	if err := m.populateRefs(ctx, lendings); err != nil {
		return nil, err
	}
	return lendings, nil
}

func (m *Mongo) GetLendingByID(ctx context.Context, id primitive.ObjectID) (*types.Lending, error) {
	var lending types.Lending
	err := m.lendings.FindOne(ctx, bson.M{"_id": id}).Decode(&lending)
	if err != nil {
		return nil, mapErr(err)
	}
	lendings := []types.Lending{lending}
	if err := m.populateRefs(ctx, lendings); err != nil {
		return nil, err
	}
	return &lendings[0], nil
}

// populateRefs fills the display fields (book title, reader name) the client
// shows next to each lending.
func (m *Mongo) populateRefs(ctx context.Context, lendings []types.Lending) error {
	if len(lendings) == 0 {
		return nil
	}

	bookIDs := make([]primitive.ObjectID, 0, len(lendings))
	readerIDs := make([]primitive.ObjectID, 0, len(lendings))
	for _, l := range lendings {
		bookIDs = append(bookIDs, l.Book)
		readerIDs = append(readerIDs, l.Reader)
	}

	titles := map[primitive.ObjectID]string{}
	cursor, err := m.books.Find(ctx, bson.M{"_id": bson.M{"$in": bookIDs}})
	if err != nil {
		return err
	}
	var books []types.Book
	if err := cursor.All(ctx, &books); err != nil {
		return err
	}
	for _, b := range books {
		titles[b.ID] = b.Title
	}

	names := map[primitive.ObjectID]string{}
	cursor, err = m.readers.Find(ctx, bson.M{"_id": bson.M{"$in": readerIDs}})
	if err != nil {
		return err
	}
	var readers []types.Reader
	if err := cursor.All(ctx, &readers); err != nil {
		return err
	}
	for _, r := range readers {
		names[r.ID] = r.Name
	}

	for i := range lendings {
		lendings[i].BookTitle = titles[lendings[i].Book]
		lendings[i].ReaderName = names[lendings[i].Reader]
	}
	return nil
}

func mapErr(err error) error {
	if err == mongo.ErrNoDocuments {
		return storage.ErrNotFound
	}
	return err
}
